package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sarchlab/demandpaging/hooking"
	"github.com/sarchlab/demandpaging/simulation"
	"github.com/sarchlab/demandpaging/tracing"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a workload on the paging engine.",
	Long: `Run starts a number of processes that touch more memory than the ` +
		`simulated machine has, so that pages are evicted to swap and ` +
		`brought back. Every process checks that its memory still holds ` +
		`what it wrote.`,
	RunE: runWorkload,
}

func init() {
	addRunFlags(runCmd.Flags())
}

func addRunFlags(f *pflag.FlagSet) {
	f.Int("frames", envInt("VMSIM_FRAMES", 64), "number of physical user pages")
	f.Int("swap-slots", envInt("VMSIM_SWAP_SLOTS", 1024), "number of swap slots")
	f.String("swap-file", envString("VMSIM_SWAP_FILE", ""),
		"keep the swap space in this file instead of memory")
	f.Bool("mmap-memory", envBool("VMSIM_MMAP_MEMORY", false),
		"back physical memory with an anonymous memory mapping")
	f.String("workload", envString("VMSIM_WORKLOAD", "random"),
		"access pattern: sequential, random, stack, or mmap")
	f.Int("processes", envInt("VMSIM_PROCESSES", 4), "number of processes")
	f.Int("pages", envInt("VMSIM_PAGES", 32), "pages touched by each process")
	f.Int("rounds", envInt("VMSIM_ROUNDS", 4), "passes over the pages")
	f.Int64("seed", int64(envInt("VMSIM_SEED", 1)), "random seed")
	f.String("log-level", envString("VMSIM_LOG_LEVEL", "warn"),
		"level of the event log: debug, info, warn, or error")
	f.String("db", envString("VMSIM_DB", ""),
		"record every event in this SQLite database (without extension)")
	f.Bool("monitor", envBool("VMSIM_MONITOR", false),
		"serve the monitoring page until interrupted")
	f.Int("monitor-port", envInt("VMSIM_MONITOR_PORT", 0),
		"port of the monitoring page, random if 0")
	f.Bool("open-browser", false, "open the monitoring page in a browser")
}

func runWorkload(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()

	kindName, _ := f.GetString("workload")
	kind, err := simulation.ParseWorkloadKind(kindName)
	if err != nil {
		return err
	}

	s, err := buildSimulation(cmd)
	if err != nil {
		return err
	}

	processes, _ := f.GetInt("processes")
	pages, _ := f.GetInt("pages")
	rounds, _ := f.GetInt("rounds")
	seed, _ := f.GetInt64("seed")

	if open, _ := f.GetBool("open-browser"); open && s.GetMonitor() != nil {
		err = s.GetMonitor().OpenInBrowser()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot open browser: %v\n", err)
		}
	}

	start := time.Now()
	runErr := s.Run(simulation.Workload{
		Kind:      kind,
		Processes: processes,
		Pages:     pages,
		Rounds:    rounds,
		Seed:      seed,
	})

	printStats(cmd, s, time.Since(start))

	if s.GetMonitor() != nil {
		fmt.Fprintf(os.Stderr, "Serving %s, press Ctrl-C to quit\n",
			s.GetMonitor().URL())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		<-ctx.Done()
		stop()
	}

	err = s.Terminate()
	if runErr != nil {
		return runErr
	}

	return err
}

func buildSimulation(cmd *cobra.Command) (*simulation.Simulation, error) {
	f := cmd.Flags()

	frames, _ := f.GetInt("frames")
	swapSlots, _ := f.GetInt("swap-slots")
	swapFile, _ := f.GetString("swap-file")
	mmapMemory, _ := f.GetBool("mmap-memory")
	level, _ := f.GetString("log-level")
	db, _ := f.GetString("db")
	monitor, _ := f.GetBool("monitor")
	port, _ := f.GetInt("monitor-port")

	b := simulation.MakeBuilder().
		WithNumFrames(frames).
		WithSwapSlots(swapSlots).
		WithLogger(tracing.NewLogger(cmd.ErrOrStderr(), tracing.ParseLevel(level)))

	if swapFile != "" {
		b = b.WithSwapFile(swapFile)
	}

	if mmapMemory {
		b = b.WithMmapMemory()
	}

	if db != "" {
		b = b.WithDataRecording(db)
	}

	if monitor {
		b = b.WithMonitoring().WithMonitorPort(port)
	}

	return b.Build()
}

func printStats(cmd *cobra.Command, s *simulation.Simulation, elapsed time.Duration) {
	st := s.Manager().Stats()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "simulation %s finished in %v\n", s.ID(), elapsed)
	fmt.Fprintf(out, "  faults         %d (%d failed)\n", st.Faults, st.FailedFaults)
	fmt.Fprintf(out, "  claims         %d\n", st.Claims)
	fmt.Fprintf(out, "  stack growths  %d\n", st.StackGrowths)
	fmt.Fprintf(out, "  evictions      %d\n", st.Evictions)
	fmt.Fprintf(out, "  swap in/out    %d/%d\n", st.SwapIns, st.SwapOuts)
	fmt.Fprintf(out, "  write backs    %d\n", st.WriteBacks)
	fmt.Fprintf(out, "  maps/unmaps    %d/%d\n", st.Maps, st.Unmaps)
	fmt.Fprintf(out, "  kills          %d\n", st.Kills)

	counter := s.EventCounter()
	fmt.Fprintf(out, "events by position\n")

	for _, name := range counter.PositionNames() {
		fmt.Fprintf(out, "  %-15s%d\n", name,
			counter.Count(&hooking.HookPos{Name: name}))
	}
}
