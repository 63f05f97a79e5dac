// Package watch re-applies cluster manifests when they change on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/capstan/capstan/internal/cmdexec"
)

const debounce = 500 * time.Millisecond

// Syncer watches a manifest directory and applies changed files.
type Syncer struct {
	dir     string
	runner  *cmdexec.Runner
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Syncer over the given directory.
func New(dir string, runner *cmdexec.Runner, timeout time.Duration, logger *slog.Logger) *Syncer {
	return &Syncer{dir: dir, runner: runner, timeout: timeout, logger: logger}
}

// Run watches until the context is cancelled. Each write or create of a
// manifest file is debounced briefly (editors fire several events per
// save) and then applied. Apply failures are logged and the watch
// continues.
func (s *Syncer) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}
	s.logger.Info("watching manifests", "dir", s.dir)

	pending := make(map[string]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	applied := make(chan string)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watch stopped by user")
			return nil

		case path := <-applied:
			delete(pending, path)
			s.apply(ctx, path)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !IsManifest(event.Name) {
				continue
			}
			path := event.Name
			if t, exists := pending[path]; exists {
				t.Reset(debounce)
				continue
			}
			pending[path] = time.AfterFunc(debounce, func() {
				select {
				case applied <- path:
				case <-ctx.Done():
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watch error", "error", err)
		}
	}
}

func (s *Syncer) apply(ctx context.Context, path string) {
	out := s.runner.Run(context.WithoutCancel(ctx), cmdexec.Command{
		Line:        "kubectl apply -f " + path,
		Description: "Re-applying " + path,
		Timeout:     s.timeout,
	})
	if out.OK() {
		s.logger.Info("manifest applied", "path", path)
		return
	}
	s.logger.Error("manifest apply failed", "path", path, "kind", out.Kind, "stderr", strings.TrimSpace(out.Stderr))
}

// IsManifest reports whether the path looks like a YAML manifest.
func IsManifest(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
