package fsutil

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// UntilModified returns a context that is canceled, with the modification as
// its cause, when anything under one of the watched paths is written,
// created, removed or renamed. Directories are watched together with their
// non-hidden subdirectories.
//
// If an error is returned, the context and cancel function are nil.
func UntilModified(ctx context.Context, paths ...string) (context.Context, func(), error) {
	cctx, cancel := context.WithCancelCause(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		cancel(err)
		return nil, nil, err
	}

	var targets []string
	for _, p := range paths {
		dirs, err := watchTargets(p)
		if err != nil {
			w.Close()
			cancel(err)
			return nil, nil, err
		}
		targets = append(targets, dirs...)
	}
	for _, t := range targets {
		if err := w.Add(t); err != nil {
			w.Close()
			cancel(err)
			return nil, nil, fmt.Errorf("failed to watch %s: %w", t, err)
		}
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				// chmod alone does not change what a loader would read.
				if event.Op == fsnotify.Chmod {
					continue
				}
				cancel(fmt.Errorf("%s is updated (%s)", event.Name, event.Op.String()))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(err)
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}

// watchTargets expands root into the paths a watcher must register: a file
// as is, or a directory and every non-hidden directory below it.
func watchTargets(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if path == root {
				dirs = append(dirs, path)
			}
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}
