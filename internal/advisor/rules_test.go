package advisor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRules(t *testing.T) {
	path := writeRules(t, `
rules:
  - name: db-cpu
    metric: cpu
    scope: process
    threshold: 50
    sustain: 2
    severity: critical
  - name: sys-mem
    metric: memory
    scope: system
    threshold: 75
`)

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("len = %d, want 2", len(rules))
	}
	if rules[0].Name != "db-cpu" || rules[0].Severity != SeverityCritical {
		t.Errorf("first rule parsed wrong: %+v", rules[0])
	}
	if rules[1].Sustain != 0 || rules[1].sustainOrDefault(3) != 3 {
		t.Errorf("unset sustain should fall back to default")
	}
	if rules[1].severityOrDefault() != SeverityWarning {
		t.Errorf("unset severity should default to warning")
	}
}

func TestLoadRulesValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing name",
			"rules:\n  - metric: cpu\n    scope: system\n    threshold: 50\n",
			"name is required",
		},
		{
			"bad metric",
			"rules:\n  - name: x\n    metric: disk\n    scope: system\n    threshold: 50\n",
			"metric",
		},
		{
			"bad scope",
			"rules:\n  - name: x\n    metric: cpu\n    scope: cluster\n    threshold: 50\n",
			"scope",
		},
		{
			"threshold out of range",
			"rules:\n  - name: x\n    metric: cpu\n    scope: system\n    threshold: 150\n",
			"threshold",
		},
		{
			"duplicate names",
			"rules:\n  - name: x\n    metric: cpu\n    scope: system\n    threshold: 50\n  - name: x\n    metric: memory\n    scope: system\n    threshold: 50\n",
			"duplicate",
		},
		{
			"bad severity",
			"rules:\n  - name: x\n    metric: cpu\n    scope: system\n    threshold: 50\n    severity: catastrophic\n",
			"severity",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadRules(writeRules(t, tc.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	if _, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
