package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	ical "github.com/arran4/golang-ical"

	"calsplit/internal/config"
	"calsplit/internal/ics"
	appLog "calsplit/internal/log"
	"calsplit/internal/output"
	"calsplit/internal/split"
)

// runSplit loads src, groups its components by class and writes one
// calendar file per class. It stops at the first write failure; files
// written before that stay on disk.
func runSplit(ctx context.Context, stdout io.Writer, conf *config.Config, src string) error {
	classes, err := loadClasses(ctx, conf, src)
	if err != nil {
		return err
	}

	dir, err := filepath.Abs(conf.OutputDir)
	if err != nil {
		return fmt.Errorf("output: resolve %s: %w", conf.OutputDir, err)
	}
	w := output.NewWriter(dir, conf.FileExtension)
	if err := w.Prepare(); err != nil {
		return err
	}

	written := 0
	err = classes.Finalize(func(code string, cal *ical.Calendar) error {
		path, err := w.Write(code, cal)
		if err != nil {
			return err
		}
		written++
		fmt.Fprintf(stdout, "Calendar created: %s\n", path)
		return nil
	})
	if err != nil {
		appLog.Error("split aborted", err, "written", written, "output_dir", dir)
		return err
	}

	appLog.Info("split completed", "written", written, "output_dir", dir)
	return nil
}

// loadClasses parses src and routes every component into a fresh grouper.
func loadClasses(ctx context.Context, conf *config.Config, src string) (*split.Classes, error) {
	cal, err := newLoader(conf).Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return split.Build(cal, conf.HeaderOptions()), nil
}

func newLoader(conf *config.Config) *ics.Loader {
	return ics.NewLoader(ics.NewFetcher(time.Duration(conf.FetchTimeoutSeconds) * time.Second))
}
