package document

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/errs"
)

// DefaultSettle is how long a dropped file must stay quiet before it is
// picked up. Copies arrive as a create followed by a burst of writes.
const DefaultSettle = 2 * time.Second

// Ingestor ingests one file from disk
type Ingestor interface {
	IngestFile(ctx context.Context, path string) (*UploadReceipt, error)
}

// WatcherOptions configure the drop-directory watcher
type WatcherOptions struct {
	Dir        string
	Extensions []string      // default [".pdf"]
	Settle     time.Duration // quiet period per file, default 2s
}

// Watcher ingests PDFs dropped into a directory as if they were
// uploaded. Events are debounced per file; hash dedup upstream makes
// repeated pickups harmless.
type Watcher struct {
	ingestor Ingestor
	dir      string
	allowed  map[string]bool
	settle   time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher creates a watcher for the given directory
func NewWatcher(ingestor Ingestor, options WatcherOptions) (*Watcher, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("watcher requires an ingestor")
	}
	if options.Dir == "" {
		return nil, fmt.Errorf("watcher requires a directory")
	}
	if options.Settle <= 0 {
		options.Settle = DefaultSettle
	}
	if len(options.Extensions) == 0 {
		options.Extensions = []string{".pdf"}
	}

	allowed := make(map[string]bool, len(options.Extensions))
	for _, ext := range options.Extensions {
		allowed[strings.ToLower(strings.TrimSpace(ext))] = true
	}

	return &Watcher{
		ingestor: ingestor,
		dir:      options.Dir,
		allowed:  allowed,
		settle:   options.Settle,
		timers:   map[string]*time.Timer{},
	}, nil
}

// Run watches the directory until the context is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	log.Info("[Watcher] watching %s", w.dir)

	defer w.drain()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("[Watcher] %s: %s", w.dir, err.Error())
		}
	}
}

// schedule arms (or re-arms) the settle timer for one file
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !w.allowed[strings.ToLower(filepath.Ext(path))] {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.timers[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.ingest(ctx, path)
	})
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	receipt, err := w.ingestor.IngestFile(ctx, path)
	if err != nil {
		// Non-PDF drops are expected noise in a shared directory
		if errs.IsKind(err, errs.KindUnsupportedFileType) {
			log.Warn("[Watcher] skipped %s: %s", path, err.Error())
			return
		}
		log.Error("[Watcher] ingest %s: %s", path, err.Error())
		return
	}
	if receipt.Duplicate {
		log.Info("[Watcher] %s already ingested as %s", path, receipt.Document.ID)
		return
	}
	log.Info("[Watcher] ingested %s as %s", path, receipt.Document.ID)
}

// drain stops pending timers so no ingest fires after Run returns
func (w *Watcher) drain() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
}
