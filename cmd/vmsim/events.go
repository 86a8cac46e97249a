package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/sarchlab/demandpaging/datarecording"
	"github.com/sarchlab/demandpaging/tracing"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var eventsCmd = &cobra.Command{
	Use:   "events DATABASE",
	Short: "List the events recorded by `run --db`.",
	Args:  cobra.ExactArgs(1),
	RunE:  listEvents,
}

func init() {
	addEventFlags(eventsCmd.Flags())
}

func addEventFlags(f *pflag.FlagSet) {
	f.Uint32("pid", 0, "only events of this process")
	f.String("position", "", "only events at this hook position, e.g. Evict")
	f.Int("limit", 100, "maximum number of events, 0 for all")
}

func listEvents(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !strings.HasSuffix(path, ".sqlite3") {
		path += ".sqlite3"
	}

	reader := datarecording.NewReader(path)
	defer reader.Close()

	reader.MapTable(tracing.EventTable, tracing.VMEvent{})

	rows, total, err := reader.Query(cmd.Context(), tracing.EventTable,
		eventQuery(cmd))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tPOSITION\tPID\tVADDR\tPADDR\tKIND\tDETAIL")

	for _, row := range rows {
		e := row.(*tracing.VMEvent)
		fmt.Fprintf(w, "%d\t%s\t%d\t0x%x\t0x%x\t%s\t%s\n",
			e.Seq, e.Position, e.PID, e.VAddr, e.PAddr, e.Kind, e.Detail)
	}

	err = w.Flush()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d events\n", len(rows), total)

	return nil
}

func eventQuery(cmd *cobra.Command) datarecording.QueryParams {
	f := cmd.Flags()
	params := datarecording.QueryParams{OrderBy: "Seq"}

	var conds []string

	if f.Changed("pid") {
		pid, _ := f.GetUint32("pid")
		conds = append(conds, "PID = ?")
		params.Args = append(params.Args, pid)
	}

	if position, _ := f.GetString("position"); position != "" {
		conds = append(conds, "Position = ?")
		params.Args = append(params.Args, position)
	}

	params.Where = strings.Join(conds, " AND ")
	params.Limit, _ = f.GetInt("limit")

	return params
}
