package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tliron/commonlog"

	"github.com/spacey-js/spacey/engine"
)

const defaultDebounce = 100 * time.Millisecond

// runWatch implements `spacey watch [file]`: run the file, then run it
// again in a fresh engine every time it changes, until interrupted.
func runWatch(args []string, stdout, stderr io.Writer) int {
	m, err := loadManifest()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("spacey watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := bindFlags(fs, m)
	debounce := fs.Duration("debounce", defaultDebounce, "Wait this long after a change before re-running")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	configureLogging(opts.verbosity, m)

	path := m.EntryPath()
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	ts := opts.typeScript || engine.IsTypeScriptPath(path)

	runOnce := func() {
		fmt.Fprintf(stdout, "[watch] running %s\n", filepath.Base(path))
		eng, closeEngine, err := newEngine(m, opts, stdout)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return
		}
		defer closeEngine()
		src, err := engine.ReadSource(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return
		}
		runSource(eng, src, ts, &options{}, false, stdout, stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runOnce()
	if err := watchFile(ctx, path, *debounce, runOnce); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// watchFile calls onChange after path is written or replaced, coalescing
// bursts of events that arrive within debounce of each other. It watches
// the parent directory so editors that save by rename are seen. It returns
// nil when ctx is done.
func watchFile(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	log := commonlog.GetLogger("spacey.watch")

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch: cannot watch %s: %w", filepath.Dir(abs), err)
	}
	log.Infof("watching %s", abs)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debugf("event %s", ev)
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warningf("watch error: %v", err)
		case <-timer.C:
			onChange()
		}
	}
}
