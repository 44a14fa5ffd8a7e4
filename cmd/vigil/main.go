package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigil-mon/agent/internal/advisor"
	"github.com/vigil-mon/agent/internal/api"
	"github.com/vigil-mon/agent/internal/collector"
	"github.com/vigil-mon/agent/internal/config"
	"github.com/vigil-mon/agent/internal/control"
	"github.com/vigil-mon/agent/internal/engine"
	"github.com/vigil-mon/agent/internal/logging"
)

var (
	version = "0.1.0"
	cfgFile string
	sortKey string
)

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Vigil process monitor",
	Long:  `Vigil - process monitoring and control engine for Windows, macOS, and Linux`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the monitoring engine",
	Run: func(cmd *cobra.Command, args []string) {
		runEngine()
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Print a one-shot process table",
	Run: func(cmd *cobra.Command, args []string) {
		printTop()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Vigil v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/vigil/vigil.yaml)")
	topCmd.Flags().StringVar(&sortKey, "sort", "cpu", "sort column: pid, name, cpu, memory, read, write")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	issues := cfg.Validate()
	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	config.LogValidationErrors(issues)
	return cfg
}

func runEngine() {
	cfg := loadConfig()
	log := logging.L("main")

	var rules []advisor.Rule
	if cfg.RulesFile != "" {
		loaded, err := advisor.LoadRules(cfg.RulesFile)
		if err != nil {
			log.Error("failed to load alert rules", "file", cfg.RulesFile, "error", err)
			os.Exit(1)
		}
		rules = loaded
		log.Info("alert rules loaded", "file", cfg.RulesFile, "count", len(rules))
	}

	eng := engine.New(cfg, collector.New(), control.New(), rules)
	srv := api.NewServer(cfg.ListenAddr, eng)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting", "version", version, "listen", cfg.ListenAddr)

	go eng.Run(ctx)
	if err := srv.Run(ctx); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// printTop polls twice so CPU and IO deltas have a baseline, then prints the
// table the way top would.
func printTop() {
	cfg := loadConfig()

	coll := collector.New()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := coll.Poll(ctx); err != nil && !isPartial(err) {
		fmt.Fprintf(os.Stderr, "Poll failed: %v\n", err)
		os.Exit(1)
	}
	time.Sleep(time.Duration(cfg.TickIntervalMS) * time.Millisecond)

	snap, err := coll.Poll(ctx)
	if err != nil && !isPartial(err) {
		fmt.Fprintf(os.Stderr, "Poll failed: %v\n", err)
		os.Exit(1)
	}

	records := snap.Processes
	key := engine.ParseSortKey(sortKey)
	engine.Sort(records, key, engine.DefaultDesc(key))

	fmt.Printf("CPU %.1f%%  Memory %.1f%% (%s / %s)  Processes %d\n\n",
		snap.CPUPercent, snap.MemoryPercent(),
		formatBytes(snap.MemoryUsed), formatBytes(snap.MemoryTotal), len(records))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tNAME\tSTATUS\tPRI\tCPU%\tMEM\tREAD/s\tWRITE/s")
	for _, rec := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f\t%s\t%s\t%s\n",
			rec.PID, rec.Name, rec.Status, rec.Priority,
			rec.CPUPercent, formatBytes(rec.MemoryBytes),
			formatBytes(perSecond(rec.DiskReadDelta, snap.Elapsed)),
			formatBytes(perSecond(rec.DiskWriteDelta, snap.Elapsed)))
	}
	w.Flush()
}

// perSecond converts a per-interval byte delta into a bytes-per-second rate.
func perSecond(delta uint64, elapsed time.Duration) uint64 {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return delta
	}
	return uint64(float64(delta) / secs)
}

func isPartial(err error) bool {
	var partial *collector.PartialError
	return errors.As(err, &partial)
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%c", float64(n)/float64(div), "KMGTPE"[exp])
}
