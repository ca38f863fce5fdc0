package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"

	"code.cloudfoundry.org/bytefmt"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/calltrace/internal/format"
	"github.com/joshuapare/calltrace/trace"
	"github.com/joshuapare/calltrace/trace/rotate"
	"github.com/joshuapare/calltrace/trace/sink"
)

func init() {
	cmd := newEmitCmd()
	fs := cmd.Flags()
	fs.StringP("out", "o", "calltrace.seg", "Segment file to append to")
	fs.String("nats", "", "Publish segments to the NATS server at `URL` instead of a file")
	fs.String("subject", sink.DefaultSubject, "NATS subject for published segments")
	fs.Bool("dry-run", false, "Keep segments in memory and only report statistics")
	fs.String("segment-size", bytefmt.ByteSize(rotate.DefaultSegmentSize), "Capacity of each segment (e.g. 4K, 1M)")
	fs.Int("threads", 1, "Number of concurrent producers")
	fs.Int("calls", 1000, "Enter/exit pairs per producer")
	fs.Int("batch", 0, "Also emit a batch-enter record every N calls (0 disables)")
	fs.String("mmap-dir", "", "Back each producer's segment with a mapped file in `DIR`")
	fs.Bool("anon-mmap", false, "Back each producer's segment with anonymous mapped memory")
	bindFlags(cmd)
	rootCmd.AddCommand(cmd)
}

func newEmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "emit",
		Short: "Emit a synthetic trace through the segment allocator",
		Long: `The emit command runs one or more producers that record a synthetic
workload (thread name, module attach, enter/exit pairs, optional batches,
thread detach, process end) and hands every full segment to a sink: an
appended zstd segment file, a NATS subject, or memory.

Every option may also be set in the config file under "emit" or through
CALLTRACE_EMIT_<FLAG> environment variables.

Example:
  calltrace emit -o run.seg --threads 4 --calls 100000
  calltrace emit --segment-size 4K --batch 64 --dry-run
  calltrace emit --nats nats://127.0.0.1:4222 --subject traces.dev`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := emitConfigFromViper()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			res, err := runEmit(ctx, cfg, newLogger())
			if err != nil {
				return err
			}
			return printEmitResult(res)
		},
	}
}

// emitConfig is the resolved configuration of one emit run.
type emitConfig struct {
	Out         string
	NATSURL     string
	Subject     string
	DryRun      bool
	SegmentSize int
	Threads     int
	Calls       int
	Batch       int
	MmapDir     string
	AnonMmap    bool
}

func emitConfigFromViper() (emitConfig, error) {
	size, err := bytefmt.ToBytes(viper.GetString("emit.segment-size"))
	if err != nil {
		return emitConfig{}, fmt.Errorf("invalid segment size: %w", err)
	}
	cfg := emitConfig{
		Out:         viper.GetString("emit.out"),
		NATSURL:     viper.GetString("emit.nats"),
		Subject:     viper.GetString("emit.subject"),
		DryRun:      viper.GetBool("emit.dry-run"),
		SegmentSize: int(size),
		Threads:     viper.GetInt("emit.threads"),
		Calls:       viper.GetInt("emit.calls"),
		Batch:       viper.GetInt("emit.batch"),
		MmapDir:     viper.GetString("emit.mmap-dir"),
		AnonMmap:    viper.GetBool("emit.anon-mmap"),
	}
	return cfg, cfg.validate()
}

func (c emitConfig) validate() error {
	switch {
	case c.Threads < 1:
		return fmt.Errorf("threads must be at least 1, got %d", c.Threads)
	case c.Calls < 0:
		return fmt.Errorf("calls must not be negative, got %d", c.Calls)
	case c.Batch < 0:
		return fmt.Errorf("batch must not be negative, got %d", c.Batch)
	case c.MmapDir != "" && c.AnonMmap:
		return errors.New("--mmap-dir and --anon-mmap are mutually exclusive")
	}
	minSize, err := c.minSegmentSize()
	if err != nil {
		return err
	}
	if c.SegmentSize < minSize {
		return fmt.Errorf("segment size %s is below the minimum of %d bytes for this workload",
			bytefmt.ByteSize(uint64(c.SegmentSize)), minSize)
	}
	return nil
}

// minSegmentSize is the smallest segment that holds the header record plus the
// largest record the workload emits.
func (c emitConfig) minSegmentSize() (int, error) {
	largest := max(
		len(threadName(c.Threads-1)),
		format.ModuleSize(2*len(imageName)),
		format.EventSize,
	)
	if c.Batch > 0 {
		size, ok := format.BatchSize(c.Batch)
		if !ok {
			return 0, fmt.Errorf("batch of %d calls exceeds the record size limit", c.Batch)
		}
		largest = max(largest, size)
	}
	return max(rotate.MinSegmentSize, trace.HeaderRecordSize+trace.PrefixSize+largest), nil
}

// emitResult summarises an emit run.
type emitResult struct {
	Destination string       `json:"destination"`
	Threads     int          `json:"threads"`
	SegmentSize int          `json:"segment_size"`
	Totals      rotate.Stats `json:"totals"`
}

func openSink(cfg emitConfig, log *slog.Logger) (sink.Sink, string, error) {
	opts := []sink.Option{sink.WithLogger(log)}
	switch {
	case cfg.DryRun:
		return sink.NewMemory(opts...), "memory", nil
	case cfg.NATSURL != "":
		s, err := sink.DialNATS(cfg.NATSURL, cfg.Subject, opts...)
		if err != nil {
			return nil, "", err
		}
		return s, cfg.NATSURL + " " + cfg.Subject, nil
	default:
		s, err := sink.OpenFile(cfg.Out, opts...)
		if err != nil {
			return nil, "", err
		}
		return s, cfg.Out, nil
	}
}

func runEmit(ctx context.Context, cfg emitConfig, log *slog.Logger) (emitResult, error) {
	if err := cfg.validate(); err != nil {
		return emitResult{}, err
	}
	out, dest, err := openSink(cfg, log)
	if err != nil {
		return emitResult{}, fmt.Errorf("failed to open sink: %w", err)
	}
	sess, err := trace.NewSession()
	if err != nil {
		_ = out.Close()
		return emitResult{}, err
	}
	printVerbose("Emitting to %s with %d producer(s)\n", dest, cfg.Threads)

	var (
		mu     sync.Mutex
		totals rotate.Stats
	)
	collect := func(st rotate.Stats) {
		mu.Lock()
		defer mu.Unlock()
		totals.Records += st.Records
		totals.Segments += st.Segments
		totals.Bytes += st.Bytes
		totals.Salvaged += st.Salvaged
		totals.Rotations += st.Rotations
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range cfg.Threads {
		g.Go(func() error {
			// Keep the goroutine on one OS thread so the id stamped into each
			// segment header names the thread that wrote it.
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			p, err := newProducer(sess, out, cfg, i, log)
			if err != nil {
				return err
			}
			werr := emitWorkload(gctx, p, cfg, i)
			cerr := p.Close(ctx)
			collect(p.Stats())
			return errors.Join(werr, cerr)
		})
	}
	err = g.Wait()
	if err == nil {
		err = emitProcessEnded(ctx, sess, out, cfg, log, collect)
	}
	if cerr := out.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		return emitResult{}, err
	}
	return emitResult{
		Destination: dest,
		Threads:     cfg.Threads,
		SegmentSize: cfg.SegmentSize,
		Totals:      totals,
	}, nil
}

func newProducer(sess *trace.Session, out sink.Sink, cfg emitConfig, idx int, log *slog.Logger) (*rotate.Producer, error) {
	opts := []rotate.Option{
		rotate.WithSegmentSize(cfg.SegmentSize),
		rotate.WithLogger(log.With("producer", idx)),
	}
	switch {
	case cfg.MmapDir != "":
		path := filepath.Join(cfg.MmapDir, fmt.Sprintf("producer-%d.seg", idx))
		opts = append(opts, rotate.WithMappedFile(path))
	case cfg.AnonMmap:
		opts = append(opts, rotate.WithAnonymousMapping())
	}
	return rotate.New(sess, out, opts...)
}

// Synthetic image layout for the emitted workload.
const (
	imageBase = 0x0000_7ff6_1000_0000
	imageSize = 0x0004_0000
	funcBase  = imageBase + 0x1000
	funcCount = 512
	imageName = "calltrace-synthetic.dll"
)

func threadName(idx int) string {
	return fmt.Sprintf("calltrace-emit-%d", idx)
}

func emitWorkload(ctx context.Context, p *rotate.Producer, cfg emitConfig, idx int) error {
	image := trace.Module{
		BaseAddr:      imageBase,
		BaseSize:      imageSize,
		TimeDateStamp: uint32(idx),
		Name:          imageName,
	}
	rec := func(write func(*trace.Segment) error) error {
		return p.Append(ctx, write)
	}

	if err := rec(func(seg *trace.Segment) error {
		return trace.AppendThreadName(seg, threadName(idx))
	}); err != nil {
		return err
	}
	if err := rec(func(seg *trace.Segment) error {
		return trace.AppendModuleEvent(seg, trace.TypeThreadAttach, image)
	}); err != nil {
		return err
	}

	hdr, err := p.Segment().Header()
	if err != nil {
		return err
	}
	batch := make([]trace.BatchCall, 0, cfg.Batch)
	for i := range cfg.Calls {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fn := uint64(funcBase) + uint64(i%funcCount)*16
		ev := trace.Event{Depth: uint32(i % 8), Return: fn + 8, Function: fn}
		ev.Args[0] = uint64(i)
		if err := rec(func(seg *trace.Segment) error {
			return trace.AppendEnterEvent(seg, ev)
		}); err != nil {
			return err
		}
		if err := rec(func(seg *trace.Segment) error {
			return trace.AppendExitEvent(seg, ev)
		}); err != nil {
			return err
		}
		if cfg.Batch == 0 {
			continue
		}
		batch = append(batch, trace.BatchCall{Ticks: uint64(i), Function: fn})
		if len(batch) == cfg.Batch {
			if err := rec(func(seg *trace.Segment) error {
				return trace.AppendBatchEnter(seg, hdr.ThreadID, batch)
			}); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	return rec(func(seg *trace.Segment) error {
		return trace.AppendModuleEvent(seg, trace.TypeThreadDetach, image)
	})
}

func emitProcessEnded(ctx context.Context, sess *trace.Session, out sink.Sink, cfg emitConfig, log *slog.Logger, collect func(rotate.Stats)) error {
	p, err := rotate.New(sess, out, rotate.WithSegmentSize(cfg.SegmentSize), rotate.WithLogger(log))
	if err != nil {
		return err
	}
	werr := p.Append(ctx, trace.AppendProcessEnded)
	cerr := p.Close(ctx)
	collect(p.Stats())
	return errors.Join(werr, cerr)
}

func printEmitResult(res emitResult) error {
	if jsonOut {
		return printJSON(res)
	}
	printInfo("%v Emitted to %s\n", color.GreenString("==>"), res.Destination)
	table := uitable.New()
	table.Separator = " "
	table.RightAlign(0)
	table.AddRow("producers:", res.Threads)
	table.AddRow("segment size:", bytefmt.ByteSize(uint64(res.SegmentSize)))
	table.AddRow("records:", res.Totals.Records)
	table.AddRow("segments:", res.Totals.Segments)
	table.AddRow("rotations:", res.Totals.Rotations)
	table.AddRow("bytes:", bytefmt.ByteSize(res.Totals.Bytes))
	if res.Totals.Salvaged > 0 {
		table.AddRow("salvaged:", color.YellowString("%d", res.Totals.Salvaged))
	}
	printInfo("%s\n", table)
	return nil
}
