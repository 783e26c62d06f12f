package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn the forwarder needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Connect dials NATS with logging hooks for connection state changes.
func Connect(url string, timeout time.Duration, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("mobile-payment-backend"),
		nats.Timeout(timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info("connected to nats", "url", nc.ConnectedUrl())
	return nc, nil
}

// NATSForwarder relays bus events to NATS subjects named
// "<prefix>.<event suffix>", e.g. payments.status_changed.
type NATSForwarder struct {
	bus       Bus
	publisher Publisher
	prefix    string
	logger    *slog.Logger
}

func NewNATSForwarder(bus Bus, publisher Publisher, prefix string, logger *slog.Logger) *NATSForwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSForwarder{
		bus:       bus,
		publisher: publisher,
		prefix:    strings.Trim(prefix, "."),
		logger:    logger,
	}
}

func (f *NATSForwarder) Subject(t Type) string {
	suffix := string(t)
	if _, rest, ok := strings.Cut(suffix, "."); ok {
		suffix = rest
	}
	if f.prefix == "" {
		return suffix
	}
	return f.prefix + "." + suffix
}

// Run forwards events until ctx is cancelled.
func (f *NATSForwarder) Run(ctx context.Context) {
	events, unsubscribe := f.bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := f.forward(e); err != nil {
				f.logger.Error("forward event failed", "type", e.Type, "event_id", e.ID, "error", err)
			}
		}
	}
}

func (f *NATSForwarder) forward(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	subject := f.Subject(e.Type)
	if err := f.publisher.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	f.logger.Debug("event forwarded", "subject", subject, "event_id", e.ID)
	return nil
}
