package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ccollins476ad/hostdl/download"
	"github.com/ccollins476ad/hostdl/secret"
	"github.com/ccollins476ad/hostdl/settings"
	log "github.com/sirupsen/logrus"
)

const version = "0.1.0"

// Exit codes.
const (
	exitSuccess     = 0
	exitInvalidArgs = 1
	exitConfigError = 2
	exitFailedURLs  = 3
)

func printFatalError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cfg, err := parseArgs(fs, args)
	if err != nil {
		if err == flag.ErrHelp {
			return exitSuccess
		}
		printFatalError(err)
		fs.Usage()
		return exitInvalidArgs
	}

	if cfg.Version {
		fmt.Printf("%s v%s\n", appName, version)
		return exitSuccess
	}

	logFile, err := setupLogging(cfg)
	if err != nil {
		printFatalError(err)
		return exitInvalidArgs
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	urls, err := collectURLs(cfg)
	if err != nil {
		printFatalError(err)
		return exitInvalidArgs
	}

	st, err := settings.Load(cfg.ConfigPath(), settings.Deps{
		Store:   download.NewStore(&http.Client{}, log.StandardLogger()),
		Secrets: secret.NewResolver(&secret.PassStore{}),
		Log:     log.StandardLogger(),
	})
	if err != nil {
		printFatalError(err)
		return exitConfigError
	}

	downloadDir := st.DownloadDir
	if cfg.DownloadDir != "" {
		downloadDir = cfg.DownloadDir
	}
	log.Debugf("download dir: %s, providers: %v", downloadDir, st.Providers.Keys())

	err = processURLs(ctx, st, downloadDir, urls)
	if err != nil {
		printFatalError(err)
		return exitFailedURLs
	}

	return exitSuccess
}
