package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/caarlos0/env/v11"
	"github.com/jessevdk/go-flags"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kpumuk/tacho-weaver/internal/backend"
	"github.com/kpumuk/tacho-weaver/internal/ddd"
)

const (
	exitOK       = 0
	exitFailed   = 1
	exitUsage    = 2
	exitInternal = 3
)

type cliOptions struct {
	Source  string        `long:"source" short:"s" choice:"vu" choice:"card" default:"card" description:"Device the download was taken from"`
	PKS1    string        `long:"pks1" value-name:"DIR" description:"Generation 1 PKS directory (default $DDD_PKS1_DIR)"`
	PKS2    string        `long:"pks2" value-name:"DIR" description:"Generation 2 PKS directory (default $DDD_PKS2_DIR)"`
	Verify  bool          `long:"verify" description:"Verify against the configured PKS directories"`
	Strict  bool          `long:"strict" description:"Reject payloads that are not well-formed TLV"`
	Timeout time.Duration `long:"timeout" value-name:"DURATION" description:"Per-file timeout, 0 for none (default $DDD_TIMEOUT)"`
	Format  string        `long:"format" short:"f" choice:"json" choice:"yaml" choice:"table" default:"json" description:"Output format"`
	Jobs    int           `long:"jobs" short:"j" default:"4" description:"Files parsed in parallel"`
	Verbose bool          `long:"verbose" short:"v" description:"Log parser activity to stderr"`
}

type envConfig struct {
	PKS1Dir string        `env:"DDD_PKS1_DIR"`
	PKS2Dir string        `env:"DDD_PKS2_DIR"`
	Timeout time.Duration `env:"DDD_TIMEOUT"`
}

type fileResult struct {
	File   string      `json:"file" yaml:"file"`
	Report *ddd.Report `json:"report" yaml:"report"`
	err    error
}

var usageDescription = heredoc.Doc(`
	Decodes tachograph DDD downloads into per-day odometer summaries.

	Files are parsed in parallel and reported in argument order. The exit
	status is 1 when any file fails to parse or verify.
`)

func run(ctx context.Context, stdout, stderr io.Writer, args []string, environ map[string]string) int {
	opts, files, err := parseArgs(stdout, args, environ)
	if err != nil {
		if errors.Is(err, errHelpShown) {
			return exitOK
		}
		writef(stderr, "dddparse: %v\n", err)
		return exitUsage
	}

	logger := newLogger(stderr, opts.Verbose)
	defer func() { _ = logger.Sync() }()

	source, err := ddd.ParseSource(opts.Source)
	if err != nil {
		writef(stderr, "dddparse: %v\n", err)
		return exitUsage
	}

	factory := backend.NewNativeFactory(backend.Config{Logger: logger})
	parser, err := factory.NewParser(opts.PKS1, opts.PKS2)
	if err != nil {
		writef(stderr, "dddparse: %v\n", err)
		return exitInternal
	}
	defer parser.Close()

	popts := backend.Options{Source: source, Verify: opts.Verify, Strict: opts.Strict}
	results := make([]fileResult, len(files))
	p := pool.New().WithMaxGoroutines(max(opts.Jobs, 1))
	for i, path := range files {
		p.Go(func() {
			results[i] = parseFile(ctx, parser, path, popts, opts.Timeout)
		})
	}
	p.Wait()

	code := exitOK
	var ok []fileResult
	for _, r := range results {
		if r.err != nil {
			writef(stderr, "dddparse: %s: %v\n", r.File, r.err)
			code = exitFailed
		}
		if r.Report != nil {
			ok = append(ok, r)
		}
	}
	if err := writeResults(stdout, opts.Format, ok); err != nil {
		writef(stderr, "dddparse: %v\n", err)
		return exitInternal
	}
	return code
}

var errHelpShown = errors.New("help shown")

func parseArgs(stdout io.Writer, args []string, environ map[string]string) (cliOptions, []string, error) {
	var opts cliOptions
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "dddparse"
	parser.Usage = "[OPTIONS] FILE..."
	parser.LongDescription = usageDescription

	files, err := parser.ParseArgs(args)
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			parser.WriteHelp(stdout)
			return cliOptions{}, nil, errHelpShown
		}
		return cliOptions{}, nil, err
	}
	if len(files) == 0 {
		return cliOptions{}, nil, errors.New("at least one input file is required")
	}

	var cfg envConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return cliOptions{}, nil, fmt.Errorf("parse env: %w", err)
	}
	if opts.PKS1 == "" {
		opts.PKS1 = cfg.PKS1Dir
	}
	if opts.PKS2 == "" {
		opts.PKS2 = cfg.PKS2Dir
	}
	// --timeout 0 disables a timeout set through the environment.
	if !parser.FindOptionByLongName("timeout").IsSet() {
		opts.Timeout = cfg.Timeout
	}
	if opts.Timeout < 0 {
		return cliOptions{}, nil, fmt.Errorf("invalid --timeout %s", opts.Timeout)
	}
	return opts, files, nil
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zap.DebugLevel))
}

func parseFile(ctx context.Context, parser backend.Parser, path string, opts backend.Options, timeout time.Duration) fileResult {
	out := fileResult{File: path}
	//nolint:gosec // CLI intentionally reads user-provided file paths.
	payload, err := os.ReadFile(path)
	if err != nil {
		out.err = err
		return out
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := parser.Parse(ctx, payload, opts)
	if err != nil {
		out.err = err
		return out
	}
	out.Report = res.Report
	if res.VerificationErr != nil {
		out.err = fmt.Errorf("verification failed: %w", res.VerificationErr)
	}
	return out
}

func writef(w io.Writer, format string, args ...any) {
	//nolint:gosec // Terminal output helper; format strings are internal callsite constants.
	_, _ = io.WriteString(w, fmt.Sprintf(format, args...))
}

func formatDistance(km int) string {
	return fmt.Sprintf("%d km", km)
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
