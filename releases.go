package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-authgate/speaknative/internal/logging"
	"github.com/go-authgate/speaknative/internal/releases"
)

func runReleases(args []string) error {
	fs := flag.NewFlagSet("releases", flag.ContinueOnError)
	logLevel := fs.String("log-level", "", "log level (default: info or LOG_LEVEL env)")
	apiBase := fs.String("github-api", releases.DefaultAPIBase, "GitHub API root")
	owner := fs.String("owner", releases.DefaultOwner, "repository owner")
	repo := fs.String("repo", releases.DefaultRepo, "repository name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logging.New(os.Stderr, getConfig(*logLevel, os.Getenv("LOG_LEVEL"), "info")).
		With(slog.String("process", "releases"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	finder, err := releases.NewFinder(nil,
		releases.WithAPIBase(*apiBase),
		releases.WithRepository(*owner, *repo),
		releases.WithLogger(log),
	)
	if err != nil {
		return err
	}
	return printDownloads(os.Stdout, finder.Downloads(ctx))
}

func printDownloads(w io.Writer, d releases.Downloads) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
