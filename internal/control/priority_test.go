package control

import "testing"

func TestUnixNicenessMonotonic(t *testing.T) {
	levels := Levels()
	for i := 1; i < len(levels); i++ {
		lower, higher := levels[i-1], levels[i]
		// Lower niceness means higher scheduling priority.
		if unixNiceness[higher] >= unixNiceness[lower] {
			t.Errorf("niceness(%s)=%d is not stronger than niceness(%s)=%d",
				higher, unixNiceness[higher], lower, unixNiceness[lower])
		}
	}
}

func TestWindowsPriorityClassMonotonic(t *testing.T) {
	// Documented ordering of Windows priority classes, weakest first.
	classRank := map[uint32]int{
		0x00000040: 0, // IDLE
		0x00004000: 1, // BELOW_NORMAL
		0x00000020: 2, // NORMAL
		0x00008000: 3, // ABOVE_NORMAL
		0x00000080: 4, // HIGH
		0x00000100: 5, // REALTIME
	}

	levels := Levels()
	for i := 1; i < len(levels); i++ {
		lower, higher := levels[i-1], levels[i]
		lowRank, ok := classRank[windowsPriorityClass[lower]]
		if !ok {
			t.Fatalf("unknown priority class for %s", lower)
		}
		highRank, ok := classRank[windowsPriorityClass[higher]]
		if !ok {
			t.Fatalf("unknown priority class for %s", higher)
		}
		if highRank <= lowRank {
			t.Errorf("class(%s) does not rank above class(%s)", higher, lower)
		}
	}
}

func TestEveryLevelHasMappings(t *testing.T) {
	for _, level := range Levels() {
		if _, ok := unixNiceness[level]; !ok {
			t.Errorf("level %s missing from unix table", level)
		}
		if _, ok := windowsPriorityClass[level]; !ok {
			t.Errorf("level %s missing from windows table", level)
		}
	}
}

func TestParseLevelRoundTrip(t *testing.T) {
	for _, level := range Levels() {
		parsed, err := ParseLevel(level.String())
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", level.String(), err)
		}
		if parsed != level {
			t.Errorf("round trip %s -> %s", level, parsed)
		}
	}

	if _, err := ParseLevel("turbo"); err == nil {
		t.Error("expected error for unknown level name")
	}
}

func TestLevelFromNicenessBuckets(t *testing.T) {
	cases := []struct {
		nice int
		want PriorityLevel
	}{
		{19, PriorityLow},
		{15, PriorityLow},
		{10, PriorityBelowNormal},
		{5, PriorityBelowNormal},
		{0, PriorityNormal},
		{-2, PriorityNormal},
		{-5, PriorityAboveNormal},
		{-10, PriorityHigh},
		{-20, PriorityRealtime},
	}
	for _, tc := range cases {
		if got := LevelFromNiceness(tc.nice); got != tc.want {
			t.Errorf("LevelFromNiceness(%d) = %s, want %s", tc.nice, got, tc.want)
		}
	}
}

func TestLevelFromPriorityClass(t *testing.T) {
	for _, level := range Levels() {
		if got := LevelFromPriorityClass(windowsPriorityClass[level]); got != level {
			t.Errorf("class of %s mapped back to %s", level, got)
		}
	}
	if got := LevelFromPriorityClass(0xdeadbeef); got != PriorityNormal {
		t.Errorf("unknown class should map to normal, got %s", got)
	}
}
