// Package events announces schema and submission changes on NATS.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/goliatone/go-dynform/pkg/gateway"
)

// Subjects.
const (
	SubjectSchemaPublished   = "dynform.schemas.published"
	SubjectSubmissionCreated = "dynform.submissions.created"
)

// SchemaPublished is the payload of SubjectSchemaPublished.
type SchemaPublished struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	At    time.Time `json:"at"`
}

// SubmissionCreated is the payload of SubjectSubmissionCreated.
type SubmissionCreated struct {
	ID        string    `json:"id"`
	FormTitle string    `json:"formTitle"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher announces domain events. Failures are reported, never retried.
type Publisher interface {
	SchemaPublished(ctx context.Context, p gateway.Published) error
	SubmissionCreated(ctx context.Context, formTitle string, c gateway.Created) error
	Close()
}

// Conn is the subset of *nats.Conn used by NATSPublisher.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes JSON payloads on a NATS connection.
type NATSPublisher struct {
	conn   Conn
	logger *slog.Logger
	now    func() time.Time
}

// Connect dials url and returns a publisher. An empty url yields a Nop.
func Connect(url string, logger *slog.Logger) (Publisher, error) {
	if url == "" {
		return Nop{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("dynform"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect %s: %w", url, err)
	}
	logger.Info("nats connected", "url", nc.ConnectedUrl())
	return NewNATSPublisher(nc, logger), nil
}

// NewNATSPublisher wraps an established connection.
func NewNATSPublisher(conn Conn, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{conn: conn, logger: logger, now: time.Now}
}

// SchemaPublished announces a newly active schema.
func (p *NATSPublisher) SchemaPublished(ctx context.Context, pub gateway.Published) error {
	return p.publish(ctx, SubjectSchemaPublished, SchemaPublished{ID: pub.ID, Title: pub.Title, At: p.now().UTC()})
}

// SubmissionCreated announces a stored submission.
func (p *NATSPublisher) SubmissionCreated(ctx context.Context, formTitle string, c gateway.Created) error {
	return p.publish(ctx, SubjectSubmissionCreated, SubmissionCreated{ID: c.ID, FormTitle: formTitle, CreatedAt: c.CreatedAt.UTC()})
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("event publish failed", "subject", subject, "error", err)
		return fmt.Errorf("events: publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", "subject", subject)
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		p.logger.Warn("nats drain failed", "error", err)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) SchemaPublished(context.Context, gateway.Published) error { return nil }

func (Nop) SubmissionCreated(context.Context, string, gateway.Created) error { return nil }

func (Nop) Close() {}
