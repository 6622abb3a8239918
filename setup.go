package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"
)

const appName = "hostdl"

type Config struct {
	URLs        []string // URLs given as positional arguments.
	InputFile   string   // File to read additional URLs from; "-" for stdin.
	Verbosity   int      // 0: warnings, 1: info, 2+: debug.
	LogFormat   string   // "text" or "json".
	LogFile     string   // Additional log destination.
	ConfigDir   string   // Directory containing config.json.
	DownloadDir string   // Overrides the configured download directory.
	Version     bool     // Print version and exit.
}

// ConfigPath returns the path of the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.ConfigDir, "config.json")
}

// countFlag is a boolean flag that counts how often it was given.
type countFlag int

func (c *countFlag) String() string {
	return strconv.Itoa(int(*c))
}

func (c *countFlag) Set(s string) error {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if b {
		*c++
	}
	return nil
}

func (c *countFlag) IsBoolFlag() bool {
	return true
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appName)
}

func parseArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	var verbosity countFlag

	fs.Var(&verbosity, "v", "verbose output; repeat for debug output")
	fs.Var(&verbosity, "verbose", "same as -v")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "log format: text or json")
	fs.StringVar(&cfg.LogFile, "log-file", "", "also write log output to this file")
	fs.StringVar(&cfg.ConfigDir, "c", defaultConfigDir(), "config directory")
	fs.StringVar(&cfg.ConfigDir, "config-dir", defaultConfigDir(), "same as -c")
	fs.StringVar(&cfg.DownloadDir, "download-dir", "", "download directory, overrides config")
	fs.StringVar(&cfg.InputFile, "i", "", "read URLs from file (\"-\" for stdin)")
	fs.BoolVar(&cfg.Version, "V", false, "print version and exit")

	fs.Usage = func() { usage(fs) }
	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}

	cfg.Verbosity = int(verbosity)
	cfg.URLs = fs.Args()

	if cfg.Version {
		return cfg, nil
	}

	if len(cfg.URLs) == 0 && cfg.InputFile == "" {
		return nil, fmt.Errorf("missing required argument: url")
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.DownloadDir != "" {
		cfg.DownloadDir, err = filepath.Abs(cfg.DownloadDir)
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: %s [option]... <url>...\n", filepath.Base(os.Args[0]))
	fmt.Fprintf(fs.Output(), "Downloads files from supported file hosting services.\n")
	fs.PrintDefaults()
}

// setupLogging configures the standard logrus logger. The returned closer
// releases the log file, if any.
func setupLogging(cfg *Config) (io.Closer, error) {
	switch {
	case cfg.Verbosity >= 2:
		log.SetLevel(log.DebugLevel)
	case cfg.Verbosity == 1:
		log.SetLevel(log.InfoLevel)
	default:
		log.SetLevel(log.WarnLevel)
	}

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{})
	}

	if cfg.LogFile == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))

	return f, nil
}
