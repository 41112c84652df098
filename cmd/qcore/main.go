package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quartzsched/qcore/pkg/admin"
	"github.com/quartzsched/qcore/pkg/callback"
	"github.com/quartzsched/qcore/pkg/config"
	"github.com/quartzsched/qcore/pkg/log"
	"github.com/quartzsched/qcore/pkg/matcher"
	"github.com/quartzsched/qcore/pkg/metrics"
	"github.com/quartzsched/qcore/pkg/queue"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qcore",
	Short: "qcore - a queue and planner core for batch scheduling",
	Long: `qcore runs the queue policy engine and multi-resource planner
described by a YAML queue configuration, backed by an in-memory mock
resource matcher for demonstration.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("qcore version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "./qcore.yaml", "Path to queue configuration file")
	rootCmd.PersistentFlags().Int64("cores", 16, "Total cores the demonstration mock planner manages")
	rootCmd.PersistentFlags().Int64("horizon", 1_000_000, "Planner time horizon, in planner time units")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(feasibleCmd)
	rootCmd.AddCommand(statsCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

// buildSet loads the configuration named by --config and constructs a
// queue.Set over a single shared mock matcher, the way the teacher's
// cluster commands build a manager before doing anything else.
func buildSet(cmd *cobra.Command) (*queue.Set, *matcher.Mock, error) {
	path, _ := cmd.Flags().GetString("config")
	cores, _ := cmd.Flags().GetInt64("cores")
	horizon, _ := cmd.Flags().GetInt64("horizon")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	m, err := matcher.NewMock(cores, horizon)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create mock matcher: %w", err)
	}

	set, err := cfg.BuildSet(func(string) matcher.Matcher { return m })
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build queue set: %w", err)
	}
	return set, m, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduling loop, draining one response batch per tick",
	Long: `Run loads the queue configuration, wires a demonstration mock
matcher, and drives the scheduling loop on a fixed tick, printing each
queue's response batch (allocated, rejected, canceled, and reservation
annotations) until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		set, _, err := buildSet(cmd)
		if err != nil {
			return err
		}

		ctx := callback.NewContext(set, config.DefaultQueueName, nil)

		metricsCollector := metrics.NewCollector(set)
		metricsCollector.Start(5 * time.Second)
		defer metricsCollector.Stop()

		metricsAddr := "127.0.0.1:9091"
		go func() {
			http.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				log.Logger.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
		log.Logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

		tick, _ := cmd.Flags().GetDuration("tick")
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		log.Logger.Info().Strs("queues", set.Names()).Msg("scheduling loop started")

		for {
			select {
			case <-ticker.C:
				loopLog := log.WithScheduleLoop()
				schedLoop, _ := ctx.PrepWatcher()
				batches, err := ctx.CheckWatcher(schedLoop)
				if err != nil {
					loopLog.Error().Err(err).Msg("scheduling loop error")
					continue
				}
				for _, b := range batches {
					if len(b.Alloced) == 0 && len(b.Rejected) == 0 && len(b.Canceled) == 0 && len(b.Annotations) == 0 {
						continue
					}
					loopLog.Info().
						Str("queue", b.QueueName).
						Ints64("alloced", b.Alloced).
						Ints64("rejected", b.Rejected).
						Ints64("canceled", b.Canceled).
						Int("annotations", len(b.Annotations)).
						Msg("response batch")
				}
			case <-sigCh:
				log.Logger.Info().Msg("shutting down")
				return nil
			}
		}
	},
}

func init() {
	runCmd.Flags().Duration("tick", 250*time.Millisecond, "Scheduling loop tick interval")
}

var statusCmd = &cobra.Command{
	Use:   "status QUEUE",
	Short: "Print a queue's resource status and lifetime stats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, m, err := buildSet(cmd)
		if err != nil {
			return err
		}
		a := admin.New(set, map[string]matcher.Matcher{args[0]: m})

		snaps, err := a.ResourceStatus(args[0])
		if err != nil {
			return err
		}
		for _, s := range snaps {
			fmt.Printf("resource=%s total=%d free_now=%d spans=%d\n", s.ResourceType, s.Total, s.FreeNow, s.SpanCount)
		}

		stats, err := a.StatsGet(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("pending=%d running=%d reserved=%d alloced=%d rejected=%d canceled=%d\n",
			stats.PendingSize, stats.RunningSize, stats.ReservedCount, stats.AllocedCnt, stats.RejectedCnt, stats.CanceledCnt)
		return nil
	},
}

var feasibleCmd = &cobra.Command{
	Use:   "feasible QUEUE JOBSPEC",
	Short: "Probe whether a jobspec could ever be satisfied, without placing it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, m, err := buildSet(cmd)
		if err != nil {
			return err
		}
		a := admin.New(set, map[string]matcher.Matcher{args[0]: m})
		ok, err := a.Feasibility(args[0], args[1])
		if err != nil {
			return err
		}
		if ok {
			fmt.Println("feasible")
			return nil
		}
		fmt.Println("infeasible")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats QUEUE",
	Short: "Print a queue's effective parameters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, m, err := buildSet(cmd)
		if err != nil {
			return err
		}
		a := admin.New(set, map[string]matcher.Matcher{args[0]: m})
		params, err := a.Params(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("queue-depth=%d max-queue-depth=%d reservation-depth=%d\n",
			params.QueueDepth, params.MaxQueueDepth, params.ReservationDepth)
		return nil
	},
}
