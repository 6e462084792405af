package contacts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/logger"
)

const (
	DefaultBuffer = 64
	writeTimeout  = 5 * time.Second
)

// Writer hands contacts to a Store from a single background goroutine.
type Writer struct {
	store  Store
	owner  string
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Contact
	done   chan struct{}
}

// NewWriter starts the background loop. Close must be called to flush it.
func NewWriter(store Store, owner string, buffer int, log *zap.Logger) *Writer {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	w := &Writer{
		store:  store,
		owner:  owner,
		logger: logger.ForStage(log, "contacts"),
		queue:  make(chan Contact, buffer),
		done:   make(chan struct{}),
	}
	go w.loop()

	return w
}

// Offer queues c without blocking. It reports whether c was accepted.
func (w *Writer) Offer(c Contact) bool {
	c = c.normalized()
	if c.Owner == "" {
		c.Owner = w.owner
	}
	if !c.Usable() {
		w.logger.Debug("contact skipped", zap.String("company", c.Company))
		return false
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}

	select {
	case w.queue <- c:
		return true
	default:
		w.logger.Debug("contact buffer full, dropped", zap.String("company", c.Company))
		return false
	}
}

// Close stops accepting contacts and waits for the queued ones to be written.
func (w *Writer) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	<-w.done
}

func (w *Writer) loop() {
	defer close(w.done)

	for c := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := w.store.Upsert(ctx, c); err != nil {
			w.logger.Warn("contact not saved", zap.String("company", c.Company), zap.Error(err))
		} else {
			w.logger.Debug("contact saved", zap.String("company", c.Company), zap.Int("emails", len(c.Emails)))
		}
		cancel()
	}
}
