// Package source loads knowledge graphs from local files.
//
// A [File] reads a JSON or YAML graph file in the graph service's wire
// format and can watch it for changes, so the explorer and server pick up
// edits without a restart:
//
//	f := source.NewFile("graph.yaml", logger)
//	f.OnChange(func(g graph.Graph, rep graph.Report) { redraw(g) })
//	stop, err := f.Watch()
//	defer stop()
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/matzehuels/knowledgemap/pkg/graph"
)

// DefaultDebounce is how long Watch waits after the last file event before
// reloading. Editors often write a file in several steps.
const DefaultDebounce = 100 * time.Millisecond

// File is a graph file source. It implements the pipeline's Loader.
type File struct {
	path     string
	logger   *log.Logger
	debounce time.Duration

	mu       sync.RWMutex
	current  graph.Graph
	report   graph.Report
	loaded   bool
	onChange []func(graph.Graph, graph.Report)
}

// NewFile creates a source for the file at path. Nothing is read until
// FetchGraph or Reload is called.
func NewFile(path string, logger *log.Logger) *File {
	if logger == nil {
		logger = log.Default()
	}
	return &File{path: filepath.Clean(path), logger: logger, debounce: DefaultDebounce}
}

// Path returns the watched file path.
func (f *File) Path() string { return f.path }

// Current returns the most recently loaded graph and whether one has been
// loaded.
func (f *File) Current() (graph.Graph, graph.Report, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current, f.report, f.loaded
}

// FetchGraph reads the file.
func (f *File) FetchGraph(ctx context.Context) (graph.Graph, graph.Report, error) {
	if err := ctx.Err(); err != nil {
		return graph.Graph{}, graph.Report{}, err
	}
	g, rep, err := graph.ReadFile(f.path)
	if err != nil {
		return graph.Graph{}, graph.Report{}, err
	}
	f.mu.Lock()
	f.current, f.report, f.loaded = g, rep, true
	f.mu.Unlock()
	return g, rep, nil
}

// OnChange registers a callback invoked whenever the file reloads.
func (f *File) OnChange(fn func(graph.Graph, graph.Report)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChange = append(f.onChange, fn)
}

// Reload forces an immediate re-read of the file and notifies callbacks.
func (f *File) Reload() (graph.Graph, graph.Report, error) {
	g, rep, err := f.FetchGraph(context.Background())
	if err != nil {
		return graph.Graph{}, graph.Report{}, err
	}
	f.mu.RLock()
	callbacks := make([]func(graph.Graph, graph.Report), len(f.onChange))
	copy(callbacks, f.onChange)
	f.mu.RUnlock()
	for _, fn := range callbacks {
		fn(g, rep)
	}
	return g, rep, nil
}

// Watch starts a background goroutine that reloads the graph whenever the
// file is written, created or renamed into place. A file that fails to
// parse is logged and the previous graph kept. Call the returned stop
// function to clean up.
//
// The parent directory is watched rather than the file itself, so editors
// that save by replacing the file keep triggering reloads.
func (f *File) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("graph watcher: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("graph watcher add %s: %w", dir, err)
	}

	done := make(chan struct{})
	var once sync.Once
	go func() {
		defer w.Close()
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != f.path {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(f.debounce, f.reloadFromWatch)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				f.logger.Warn("graph watcher error", "error", err)
			case <-done:
				return
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }, nil
}

func (f *File) reloadFromWatch() {
	g, rep, err := f.Reload()
	if err != nil {
		// Keep the old graph; a half-written file is common mid-save.
		f.logger.Warn("graph reload failed", "path", f.path, "error", err)
		return
	}
	f.logger.Info("graph reloaded", "path", f.path, "nodes", len(g.Nodes), "edges", len(g.Edges), "dropped", rep.Dropped())
}
