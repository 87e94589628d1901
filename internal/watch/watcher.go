// Package watch republishes a schema file whenever it changes on disk.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/go-dynform/pkg/gateway"
	"github.com/goliatone/go-dynform/pkg/schema"
)

// Publisher is the part of gateway.SchemaGateway the watcher needs.
type Publisher interface {
	PublishSchema(ctx context.Context, form schema.FormSchema) (gateway.Published, error)
}

// Config configures a Watcher.
type Config struct {
	// File is the JSON or YAML schema document to follow.
	File string
	// Debounce is how long to wait for more writes before publishing.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Result reports one publish attempt.
type Result struct {
	Published gateway.Published
	Err       error
}

// Watcher follows one schema file. The parent directory is watched rather
// than the file itself so editors that save via rename are still seen.
type Watcher struct {
	file      string
	debounce  time.Duration
	publisher Publisher
	logger    *slog.Logger

	mu       sync.Mutex
	dirty    bool
	lastHash string

	results chan Result
}

// New validates cfg and returns an idle watcher.
func New(cfg Config, publisher Publisher) (*Watcher, error) {
	if cfg.File == "" {
		return nil, errors.New("watch: file is required")
	}
	if publisher == nil {
		return nil, errors.New("watch: publisher is required")
	}
	abs, err := filepath.Abs(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", cfg.File, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Watcher{
		file:      abs,
		debounce:  debounce,
		publisher: publisher,
		logger:    logger,
		results:   make(chan Result, 16),
	}, nil
}

// Results reports every publish attempt. Results are dropped when the
// channel is full.
func (w *Watcher) Results() <-chan Result {
	return w.results
}

// Run publishes the file once, then republishes on every content change
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fsw.Close()
	defer close(w.results)

	if err := fsw.Add(filepath.Dir(w.file)); err != nil {
		return fmt.Errorf("watch: add %s: %w", filepath.Dir(w.file), err)
	}
	w.logger.Info("watching schema file", "file", w.file, "debounce", w.debounce)

	w.publish(ctx)

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("schema watcher error", "error", err)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.file {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	w.mu.Lock()
	w.dirty = true
	w.mu.Unlock()
	w.logger.Debug("schema file changed", "file", w.file, "op", event.Op.String())
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	dirty := w.dirty
	w.dirty = false
	w.mu.Unlock()
	if dirty {
		w.publish(ctx)
	}
}

func (w *Watcher) publish(ctx context.Context) {
	raw, err := os.ReadFile(w.file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Mid-rename; the Create event will follow.
			return
		}
		w.send(Result{Err: fmt.Errorf("watch: read %s: %w", w.file, err)})
		return
	}

	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])
	w.mu.Lock()
	unchanged := hash == w.lastHash
	w.mu.Unlock()
	if unchanged {
		return
	}

	form, err := Load(w.file, raw)
	if err != nil {
		w.logger.Warn("schema file rejected", "file", w.file, "error", err)
		w.send(Result{Err: err})
		return
	}
	published, err := w.publisher.PublishSchema(ctx, form)
	if err != nil {
		w.logger.Warn("schema publish failed", "file", w.file, "error", err)
		w.send(Result{Err: err})
		return
	}

	w.mu.Lock()
	w.lastHash = hash
	w.mu.Unlock()
	w.logger.Info("schema file published", "file", w.file, "id", published.ID, "title", published.Title)
	w.send(Result{Published: published})
}

func (w *Watcher) send(r Result) {
	select {
	case w.results <- r:
	default:
	}
}

// Load decodes raw as JSON or YAML depending on path's extension.
func Load(path string, raw []byte) (schema.FormSchema, error) {
	doc, err := schema.NewDocument(schema.SourceFromFile(path), raw)
	if err != nil {
		return schema.FormSchema{}, fmt.Errorf("watch: %s: %w", path, err)
	}
	form, err := doc.Decode()
	if err != nil {
		return schema.FormSchema{}, fmt.Errorf("watch: %s: %w", path, err)
	}
	return form, nil
}
