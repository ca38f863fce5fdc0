package main

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/joshuapare/calltrace/trace"
	"github.com/joshuapare/calltrace/trace/clock"
	"github.com/joshuapare/calltrace/trace/sink"
)

func init() {
	rootCmd.AddCommand(newVerifyCmd())
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check every segment in a segment file",
		Long: `The verify command decompresses each frame of a segment file written by
emit and checks that the segment frames cleanly: one header record first,
a segment length matching the consumed bytes, and non-decreasing
timestamps.

Example:
  calltrace verify run.seg
  calltrace verify run.seg --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := verifyFile(args[0])
			if err != nil {
				return err
			}
			return printVerifyReport(rep)
		},
	}
}

// ThreadReport aggregates the segments of one producer thread.
type ThreadReport struct {
	ThreadID uint32 `json:"thread_id"`
	Segments int    `json:"segments"`
	Records  int    `json:"records"`
	Bytes    uint64 `json:"bytes"`
	Ticks    uint64 `json:"ticks_covered"`
	// Elapsed converts the covered ticks with each segment's timer resolution.
	Elapsed time.Duration `json:"elapsed_ns"`
}

// VerifyReport is the result of verifying a segment file.
type VerifyReport struct {
	Path     string         `json:"path"`
	Segments int            `json:"segments"`
	Records  int            `json:"records"`
	Bytes    uint64         `json:"bytes"`
	Threads  []ThreadReport `json:"threads"`
	Types    map[string]int `json:"record_types"`
}

func verifyFile(path string) (VerifyReport, error) {
	printVerbose("Verifying: %s\n", path)
	rep := VerifyReport{Path: path, Types: map[string]int{}}
	byThread := map[uint32]*ThreadReport{}
	err := sink.ReadFile(path, func(h sink.Handoff) error {
		sum, err := trace.Verify(h.Data)
		if err != nil {
			return fmt.Errorf("segment %d of thread %d: %w", h.Sequence, h.ThreadID, err)
		}
		for rec, err := range trace.Records(h.Data) {
			if err != nil {
				return err
			}
			rep.Types[rec.Prefix.Type.String()]++
		}

		tr := byThread[sum.Header.ThreadID]
		if tr == nil {
			tr = &ThreadReport{ThreadID: sum.Header.ThreadID}
			byThread[sum.Header.ThreadID] = tr
		}
		tr.Segments++
		tr.Records += sum.Records
		tr.Bytes += uint64(len(h.Data))
		tr.Ticks += sum.Last - sum.First
		cal := clock.Calibration{Frequency: sum.Header.TimerResolution}
		tr.Elapsed += time.Duration(cal.Nanoseconds(sum.Last - sum.First))

		rep.Segments++
		rep.Records += sum.Records
		rep.Bytes += uint64(len(h.Data))
		return nil
	})
	if err != nil {
		return VerifyReport{}, err
	}
	for _, tr := range byThread {
		rep.Threads = append(rep.Threads, *tr)
	}
	slices.SortFunc(rep.Threads, func(a, b ThreadReport) int {
		return cmp.Compare(a.ThreadID, b.ThreadID)
	})
	return rep, nil
}

func printVerifyReport(rep VerifyReport) error {
	if jsonOut {
		return printJSON(rep)
	}
	printInfo("%v %s\n", color.GreenString("==>"), rep.Path)
	table := uitable.New()
	table.Separator = "  "
	table.AddRow("THREAD", "SEGMENTS", "RECORDS", "BYTES", "TICKS", "ELAPSED")
	for _, tr := range rep.Threads {
		table.AddRow(tr.ThreadID, tr.Segments, tr.Records, bytefmt.ByteSize(tr.Bytes), tr.Ticks, tr.Elapsed)
	}
	printInfo("%s\n\n", table)

	types := uitable.New()
	types.Separator = "  "
	types.AddRow("TYPE", "RECORDS")
	for _, name := range slices.Sorted(maps.Keys(rep.Types)) {
		types.AddRow(name, rep.Types[name])
	}
	printInfo("%s\n", types)
	printInfo("\n%s %d segments, %d records, %s\n", color.GreenString("✓"),
		rep.Segments, rep.Records, bytefmt.ByteSize(rep.Bytes))
	return nil
}
