package events

import (
	"context"
	"errors"
)

// HandlerFunc adapts a function to DeliveryHandler.
type HandlerFunc func(ctx context.Context, entry OutboxEntry) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, entry OutboxEntry) error {
	return f(ctx, entry)
}

type fanout []DeliveryHandler

// Fanout delivers each entry to every handler. The entry stays pending (and
// is retried) as long as any handler fails; handlers must therefore tolerate
// seeing the same entry again.
func Fanout(handlers ...DeliveryHandler) DeliveryHandler {
	out := make(fanout, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (f fanout) Handle(ctx context.Context, entry OutboxEntry) error {
	var errs []error
	for _, h := range f {
		if err := h.Handle(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
