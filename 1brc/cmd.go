package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"

	"obrc/chunk"
	"obrc/engine"
	"obrc/gen"
	"obrc/record"
	"obrc/region"
	"obrc/scan"
)

const (
	EXIT_USAGE   = 1
	EXIT_INVALID = 5

	DEFAULT_VIOLATION_LIMIT = 10
	DEFAULT_ROWS            = 1_000_000

	PROFILE_FILE = "cpu_profile.pprof"
)

// exitError carries a process exit code along with the failure.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func exitCode(err error) int {
	var re *region.Error
	if errors.As(err, &re) {
		return re.ExitCode()
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return EXIT_USAGE
}

type app struct {
	stdout io.Writer
	stderr io.Writer
	v      *viper.Viper
	logger *slog.Logger
}

// run executes the command line in args and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		v:      viper.New(),
		logger: slog.New(slog.NewTextHandler(stderr, nil)),
	}

	root := a.rootCmd()
	// cobra falls back to os.Args on nil.
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "obrc: %v\n", err)
		return exitCode(err)
	}
	return 0
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "obrc <file>",
		Short: "Aggregate per-station temperature statistics",
		Long: `Read a file of "name;value" lines and print min/avg/max per station,
sorted by name. Every flag can also be set through an OBRC_ environment
variable, e.g. OBRC_WORKERS=8 or OBRC_FINE_CHUNK_SIZE=1048576.`,
		Args:              cobra.ExactArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.aggregate,
	}

	pf := cmd.PersistentFlags()
	pf.IntP("workers", "w", 0, "number of workers, 0 for GOMAXPROCS")
	pf.Int("fine-chunk-size", chunk.DEFAULT_FINE_SIZE, "size in bytes of the chunks after the coarse phase")
	pf.Int("limit", DEFAULT_VIOLATION_LIMIT, "maximum number of violations to report when validating")
	pf.BoolP("verbose", "v", false, "log at debug level")

	f := cmd.Flags()
	f.Bool("diagnostics", false, "print timings and per-worker counters after the report")
	f.Bool("pin", false, "pin workers to CPUs")
	f.Int("scan-width", int(scan.DefaultWidth), "bytes compared per scan window (16 or 32)")
	f.Float64("coarse-fraction", chunk.DEFAULT_COARSE_FRACTION, "fraction of the input split evenly between workers")
	f.Bool("validate", false, "check the input format before aggregating")
	f.Bool("profile", false, "write a CPU profile to "+PROFILE_FILE)

	cmd.AddCommand(a.generateCmd(), a.validateCmd())
	return cmd
}

// setup binds flags and environment and builds the logger for whichever
// command is executing.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.v.SetEnvPrefix("OBRC")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("unable to bind flags: %w", err)
	}

	level := slog.LevelInfo
	if a.v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		a.logger.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		a.logger.Warn("unable to set GOMAXPROCS", slog.Any("error", err))
	}
	return nil
}

func (a *app) config() engine.Config {
	return engine.Config{
		Workers:        a.v.GetInt("workers"),
		Diagnostics:    a.v.GetBool("diagnostics"),
		PinThreads:     a.v.GetBool("pin"),
		ScanWidth:      scan.Width(a.v.GetInt("scan-width")),
		CoarseFraction: a.v.GetFloat64("coarse-fraction"),
		FineChunkSize:  a.v.GetInt("fine-chunk-size"),
	}
}

func (a *app) aggregate(cmd *cobra.Command, args []string) error {
	if a.v.GetBool("profile") {
		stop, err := startProfile(PROFILE_FILE)
		if err != nil {
			return err
		}
		defer stop()
	}

	r, err := region.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	e := engine.New(engine.WithConfig(a.config()), engine.WithLogger(a.logger))
	if a.v.GetBool("validate") {
		if err := a.check(cmd.Context(), r); err != nil {
			return err
		}
	}

	res, err := e.Run(r)
	if err != nil {
		return fmt.Errorf("unable to aggregate %s: %w", args[0], err)
	}
	if err := res.WriteReport(a.stdout); err != nil {
		return err
	}
	if res.Diagnostics != nil {
		res.Diagnostics.Write(a.stdout)
	}
	return nil
}

// check runs the strict format pass over r. Violations map to EXIT_INVALID.
func (a *app) check(ctx context.Context, r *region.Region) error {
	workers := a.v.GetInt("workers")
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	slicer := chunk.NewSlicer(r.Bytes(), workers, chunk.WithFineSize(a.v.GetInt("fine-chunk-size")))

	err := record.ValidateRegion(ctx, r, slicer.Chunks(), workers, a.v.GetInt("limit"))
	var merr *multierror.Error
	if errors.As(err, &merr) {
		return &exitError{code: EXIT_INVALID, err: err}
	}
	return err
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a file is well formed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := region.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			if err := a.check(cmd.Context(), r); err != nil {
				return err
			}
			a.logger.Info("input is well formed", slog.String("path", args[0]), slog.Int("bytes", r.Len()))
			return nil
		},
	}
}

func (a *app) generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Write a synthetic measurements file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("unable to create %s: %w", args[0], err)
			}

			rows := a.v.GetInt("rows")
			err = gen.Generate(f, rows,
				gen.WithSeed(a.v.GetUint64("seed")),
				gen.WithSkew(a.v.GetFloat64("skew")),
				gen.WithStations(a.v.GetInt("stations")),
			)
			if cerr := f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("unable to close %s: %w", args[0], cerr)
			}
			if err != nil {
				return err
			}

			a.logger.Info("generated measurements", slog.String("path", args[0]), slog.Int("rows", rows))
			return nil
		},
	}

	f := cmd.Flags()
	f.Int("rows", DEFAULT_ROWS, "number of records")
	f.Int("stations", len(gen.Stations), "number of distinct stations")
	f.Uint64("seed", gen.DEFAULT_SEED, "random seed")
	f.Float64("skew", gen.DEFAULT_SKEW, "Zipf exponent of station popularity, 1 or less for uniform")
	return cmd
}

func startProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("unable to start CPU profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}
