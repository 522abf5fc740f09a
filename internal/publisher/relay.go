package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
)

// DefaultSubject is used when no relay subject is configured.
const DefaultSubject = "pagespub.publish.events"

// messagePublisher is the part of *nats.Conn the relay needs.
type messagePublisher interface {
	Publish(subject string, data []byte) error
}

// NATSRelay forwards worker events to a NATS subject as JSON.
type NATSRelay struct {
	conn    *nats.Conn
	pub     messagePublisher
	subject string
}

// NewNATSRelay connects to url.
func NewNATSRelay(url, subject string) (*NATSRelay, error) {
	conn, err := nats.Connect(url, nats.Name("pagespub-relay"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	r := newRelay(conn, subject)
	r.conn = conn
	return r, nil
}

func newRelay(pub messagePublisher, subject string) *NATSRelay {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSRelay{pub: pub, subject: subject}
}

// Send publishes one event.
func (r *NATSRelay) Send(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return r.pub.Publish(r.subject, data)
}

// Forward relays events until the channel closes or ctx is done.
// Send failures are logged and skipped.
func (r *NATSRelay) Forward(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := r.Send(ev); err != nil {
				slog.Debug("Dropping publish event", slog.String("subject", r.subject), logfields.Error(err))
			}
		}
	}
}

// Close drains the connection, if the relay owns one.
func (r *NATSRelay) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Drain()
}
