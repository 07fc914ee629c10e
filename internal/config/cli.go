package config

import (
	"errors"
	"flag"
	"fmt"
	"io"

	apperrors "github.com/olegiv/seclog-ai-go/internal/errors"
)

// CLIOptions holds the seclog command line
type CLIOptions struct {
	InputPath   string // first positional argument
	OutputPath  string // optional second positional argument
	Overrides   Overrides
	ShowHelp    bool // -help: show usage
	ShowVersion bool // -version: show version
}

// ServerOptions holds the seclog-server command line
type ServerOptions struct {
	Overrides   Overrides
	ShowHelp    bool
	ShowVersion bool
}

// commonFlags registers the pipeline flags shared by both binaries.
func commonFlags(fs *flag.FlagSet, o *Overrides) {
	fs.StringVar(&o.LLMProvider, "provider", "", "Summarizer provider: ollama, anthropic, lmstudio, none (overrides LLM_PROVIDER)")
	fs.StringVar(&o.ParseMode, "parse-mode", "", "Parse mode: strict, permissive (overrides PARSE_MODE)")
	fs.StringVar(&o.FilterPolicy, "filter", "", "Filter policy: severity, keyword (overrides FILTER_POLICY)")
	fs.StringVar(&o.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

// ParseCLI parses seclog arguments (without the program name).
// Bad input yields *errors.UsageError; usage text goes to out.
func ParseCLI(args []string, out io.Writer) (*CLIOptions, error) {
	opts := &CLIOptions{}

	fs := flag.NewFlagSet("seclog", flag.ContinueOnError)
	fs.SetOutput(out)
	commonFlags(fs, &opts.Overrides)
	fs.BoolVar(&opts.ShowHelp, "help", false, "Show usage information")
	fs.BoolVar(&opts.ShowVersion, "version", false, "Show version information")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(out, "seclog - security log reporter\n\n")
		_, _ = fmt.Fprintf(out, "Usage: seclog [options] <logfile.json> [output.txt]\n\n")
		_, _ = fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
		_, _ = fmt.Fprintf(out, "\nExamples:\n")
		_, _ = fmt.Fprintf(out, "  seclog auth.json\n")
		_, _ = fmt.Fprintf(out, "  seclog -provider none auth.json report.txt\n")
		_, _ = fmt.Fprintf(out, "  seclog -parse-mode permissive -filter severity auth.json\n")
		_, _ = fmt.Fprintf(out, "\nEnvironment variables can be set in .env file or exported directly.\n")
		_, _ = fmt.Fprintf(out, "CLI arguments override environment variables.\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			opts.ShowHelp = true
			return opts, nil
		}
		return nil, apperrors.NewUsageError("%v", err)
	}

	if opts.ShowHelp {
		fs.Usage()
		return opts, nil
	}
	if opts.ShowVersion {
		return opts, nil
	}

	switch fs.NArg() {
	case 0:
		return nil, apperrors.NewUsageError("missing input file\nUsage: seclog [options] <logfile.json> [output.txt]")
	case 1:
		opts.InputPath = fs.Arg(0)
	case 2:
		opts.InputPath = fs.Arg(0)
		opts.OutputPath = fs.Arg(1)
	default:
		return nil, apperrors.NewUsageError("too many arguments\nUsage: seclog [options] <logfile.json> [output.txt]")
	}

	if opts.InputPath == "" {
		return nil, apperrors.NewUsageError("input file must not be empty")
	}
	return opts, nil
}

// ParseServerCLI parses seclog-server arguments (without the program name).
func ParseServerCLI(args []string, out io.Writer) (*ServerOptions, error) {
	opts := &ServerOptions{}

	fs := flag.NewFlagSet("seclog-server", flag.ContinueOnError)
	fs.SetOutput(out)
	commonFlags(fs, &opts.Overrides)
	fs.StringVar(&opts.Overrides.ServerAddr, "addr", "", "Listen address (overrides SERVER_ADDR)")
	fs.StringVar(&opts.Overrides.DefaultInputPath, "default-input", "", "Log file used when no upload is given (overrides DEFAULT_INPUT_PATH)")
	fs.StringVar(&opts.Overrides.UploadDir, "upload-dir", "", "Directory for uploaded files (overrides UPLOAD_DIR)")
	fs.StringVar(&opts.Overrides.IndexHTMLPath, "index", "", "Index page served with every report (overrides INDEX_HTML_PATH)")
	fs.StringVar(&opts.Overrides.MetricsAddr, "metrics-addr", "", "Prometheus admin listen address (overrides METRICS_ADDR)")
	fs.BoolVar(&opts.ShowHelp, "help", false, "Show usage information")
	fs.BoolVar(&opts.ShowVersion, "version", false, "Show version information")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(out, "seclog-server - security log report server\n\n")
		_, _ = fmt.Fprintf(out, "Usage: seclog-server [options]\n\n")
		_, _ = fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
		_, _ = fmt.Fprintf(out, "\nExamples:\n")
		_, _ = fmt.Fprintf(out, "  seclog-server -addr :8080 -default-input varied_logs.json\n")
		_, _ = fmt.Fprintf(out, "  seclog-server -metrics-addr 127.0.0.1:9090\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			opts.ShowHelp = true
			return opts, nil
		}
		return nil, apperrors.NewUsageError("%v", err)
	}

	if opts.ShowHelp {
		fs.Usage()
		return opts, nil
	}

	if fs.NArg() > 0 {
		return nil, apperrors.NewUsageError("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}
