package events

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"needle/internal/logging"
)

// Handler receives published events.
type Handler func(ctx context.Context, event Event) error

// Bus fans events out to subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers []namedHandler
	logger   *slog.Logger
}

type namedHandler struct {
	name string
	fn   Handler
}

// NewBus returns an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logging.NewComponentLogger(logger, "events")}
}

// Subscribe registers fn for every event.
func (b *Bus) Subscribe(name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, namedHandler{name: name, fn: fn})
}

// On registers fn for events of type E only.
func On[E Event](b *Bus, name string, fn func(ctx context.Context, event E) error) {
	b.Subscribe(name, func(ctx context.Context, event Event) error {
		typed, ok := event.(E)
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	})
}

// Publish delivers event to every subscriber. A nil bus drops the event.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if b == nil || event == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]namedHandler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := b.deliver(ctx, h, event); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, b.logger), "event handler failed", "event_handler_failed",
				logging.String("event", event.EventName()),
				logging.String("handler", h.name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "handler skipped; publisher continues"),
			)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, h namedHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			b.logger.Debug("event handler panic stack", logging.String("stack", string(debug.Stack())))
		}
	}()
	return h.fn(ctx, event)
}
