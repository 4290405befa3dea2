// Package config parses the CLI flags documented in spec.md §6 into a
// Config record and builds the slog logger the rest of the program uses.
package config

import (
	"flag"
	"io"
	"log/slog"
	"os"
)

// DefaultLogFilePath is the log file the teacher's SetupLogger always
// opens alongside stdout; dupesieve keeps the same two-sink shape.
const DefaultLogFilePath = "dupesieve.log"

// Config is the configuration record the core operations consume. The
// CLI flag surface itself is an external collaborator (spec §1); this
// is its only contract with the core.
type Config struct {
	DatabasePath    string
	Path            string
	ResetDatabase   bool
	CleanUnfound    bool
	Threads         int
	NoWeb           bool
	BindAddress     string
	Port            int
	CommitBatchSize int
	AllowPreview    bool
	Videohash       bool
	Verbosity       int
}

// ParseArgs parses os.Args into a Config, mirroring the flag set of
// spec.md §6.
func (c *Config) ParseArgs() {
	flag.StringVar(&c.DatabasePath, "db", "./dupesieve.sqlite", "Path to the persisted index file.")
	flag.StringVar(&c.Path, "path", "", "Root directory for the walker; if empty, no indexing runs.")
	flag.BoolVar(&c.ResetDatabase, "reset-database", false, "Recreate the store's relations before doing anything.")
	flag.BoolVar(&c.CleanUnfound, "clean-unfound", false, "Delete store rows whose path was not seen by the walker.")
	flag.IntVar(&c.Threads, "threads", 4, "Size of the producer worker pool.")
	flag.BoolVar(&c.NoWeb, "no-web", false, "Print clusters to stdout instead of starting the query server.")
	flag.StringVar(&c.BindAddress, "bind-address", "127.0.0.1", "Bind host for the query server.")
	flag.IntVar(&c.Port, "port", 5757, "Bind port for the query server.")
	flag.IntVar(&c.CommitBatchSize, "commit-batchsize", 1024, "Records per transaction.")
	flag.BoolVar(&c.AllowPreview, "allow-preview", false, "Let the query server stream file bytes (security-sensitive).")
	flag.BoolVar(&c.Videohash, "videohash", false, "Also run the histogram pipeline.")

	v1 := flag.Bool("v", false, "Verbose logging (info level).")
	v2 := flag.Bool("vv", false, "More verbose logging (debug level).")
	v3 := flag.Bool("vvv", false, "Most verbose logging (debug level).")
	flag.Parse()

	switch {
	case *v3:
		c.Verbosity = 3
	case *v2:
		c.Verbosity = 2
	case *v1:
		c.Verbosity = 1
	default:
		c.Verbosity = 0
	}
}

// LogLevel maps the -v/-vv/-vvv verbosity count onto a slog.Level, with
// "warn" (spec's documented default) at verbosity 0.
func (c *Config) LogLevel() slog.Level {
	switch c.Verbosity {
	case 0:
		return slog.LevelWarn
	case 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// SetupLogger creates a slog.Logger that writes JSON to both a log file
// and stdout, mirroring internal/config.SetupLogger in the teacher. A
// *slog.LevelVar is returned so callers (and tests) can read the active
// level back or change it at runtime.
func SetupLogger(logFilePath string, level slog.Level) (*slog.Logger, *slog.LevelVar) {
	lvl := &slog.LevelVar{}
	lvl.Set(level)
	opts := &slog.HandlerOptions{Level: lvl}

	writers := []io.Writer{os.Stdout}
	if logFilePath != "" {
		file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			slog.Error("failed to open log file", slog.String("path", logFilePath), slog.Any("error", err))
			os.Exit(1)
		}
		writers = append(writers, file)
	}

	return slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), opts)), lvl
}
