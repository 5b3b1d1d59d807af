// Package events announces published news to other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/quilpalta/alpalo/news"
)

// SubjectPublished carries one message per published item.
const SubjectPublished = "noticias.publicada"

// Published is the message body sent on SubjectPublished.
type Published struct {
	ID        string        `json:"id"`
	Title     string        `json:"titulo"`
	Category  news.Category `json:"categoria"`
	Author    string        `json:"autor"`
	ImageURL  string        `json:"imagen_url"`
	Link      string        `json:"link"`
	CreatedAt time.Time     `json:"created_at"`
}

// Nop discards every event.
type Nop struct{}

// NewsPublished implements publish.Notifier.
func (Nop) NewsPublished(context.Context, news.Item) error { return nil }

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes events on a NATS connection.
type NATS struct {
	conn    publisher
	nc      *nats.Conn
	baseURL string
	logger  *zap.Logger
}

// ConnectNATS dials url and returns a notifier whose links are made absolute
// against baseURL.
func ConnectNATS(url, baseURL string, logger *zap.Logger) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("alpalo"),
		nats.Timeout(5*time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("nats error", zap.String("subject", subject), zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	logger.Info("connected to nats", zap.String("url", nc.ConnectedUrl()))
	n := newNATS(nc, baseURL, logger)
	n.nc = nc
	return n, nil
}

func newNATS(conn publisher, baseURL string, logger *zap.Logger) *NATS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATS{conn: conn, baseURL: baseURL, logger: logger}
}

// NewsPublished implements publish.Notifier.
func (n *NATS) NewsPublished(ctx context.Context, it news.Item) error {
	data, err := json.Marshal(Published{
		ID:        it.ID,
		Title:     it.Title,
		Category:  it.Category,
		Author:    it.Author,
		ImageURL:  it.ImageURL,
		Link:      n.baseURL + it.Link(),
		CreatedAt: it.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", SubjectPublished, err)
	}
	if err := n.conn.Publish(SubjectPublished, data); err != nil {
		return fmt.Errorf("publish %s: %w", SubjectPublished, err)
	}
	n.logger.Debug("event published", zap.String("subject", SubjectPublished), zap.String("id", it.ID))
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *NATS) Close() {
	if n.nc == nil || n.nc.IsClosed() {
		return
	}
	if err := n.nc.Drain(); err != nil {
		n.logger.Warn("nats drain failed", zap.Error(err))
		n.nc.Close()
	}
}
