package signal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"productradar/internal/logger"
)

// Subscriber is satisfied by *nats.Conn.
type Subscriber interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// NATSCollector consumes events published on productradar.events.<source>.
// When an event carries no source the last subject token is used.
type NATSCollector struct {
	conn    Subscriber
	subject string
	logger  *zap.Logger

	mu        sync.Mutex
	sub       *nats.Subscription
	lastMsgAt *time.Time
	lastErr   *string

	received     uint64
	decodeErrors uint64
}

func NewNATSCollector(conn Subscriber, subject string, logger *zap.Logger) *NATSCollector {
	if strings.TrimSpace(subject) == "" {
		subject = "productradar.events.>"
	}
	return &NATSCollector{conn: conn, subject: subject, logger: logger}
}

func (c *NATSCollector) Name() string { return "nats" }

func (c *NATSCollector) SourceInfo() SourceInfo {
	return SourceInfo{SourceType: "push", Endpoint: c.subject}
}

func (c *NATSCollector) Start(ctx context.Context, out chan<- Event) error {
	if c == nil || c.conn == nil {
		return fmt.Errorf("nats collector not configured")
	}
	sub, err := c.conn.Subscribe(c.subject, func(msg *nats.Msg) {
		c.handle(ctx, msg, out)
	})
	if err != nil {
		c.setErr(err)
		return fmt.Errorf("subscribe %s: %w", c.subject, err)
	}
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	<-ctx.Done()
	return nil
}

func (c *NATSCollector) Stop() error {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}

func (c *NATSCollector) Health() HealthStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := "ok"
	if c.sub == nil {
		status = "unknown"
	}
	if c.lastErr != nil {
		status = "error"
	}
	return HealthStatus{
		Status:     status,
		LastPollAt: c.lastMsgAt,
		LastError:  c.lastErr,
		Details: map[string]any{
			"received":      atomic.LoadUint64(&c.received),
			"decode_errors": atomic.LoadUint64(&c.decodeErrors),
		},
	}
}

func (c *NATSCollector) handle(ctx context.Context, msg *nats.Msg, out chan<- Event) {
	if msg == nil {
		return
	}
	now := time.Now().UTC()
	c.mu.Lock()
	c.lastMsgAt = &now
	c.mu.Unlock()

	events, errs := DecodeEvents(msg.Data)
	if len(errs) > 0 {
		atomic.AddUint64(&c.decodeErrors, uint64(len(errs)))
		logger.OrNop(c.logger).Warn("undecodable nats event",
			zap.String("subject", msg.Subject),
			zap.Error(errs[0]),
		)
	}
	fallback := subjectSource(msg.Subject)
	for _, ev := range events {
		if strings.TrimSpace(ev.Source) == "" {
			ev.Source = fallback
		}
		atomic.AddUint64(&c.received, 1)
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (c *NATSCollector) setErr(err error) {
	msg := err.Error()
	c.mu.Lock()
	c.lastErr = &msg
	c.mu.Unlock()
}

func subjectSource(subject string) string {
	idx := strings.LastIndex(subject, ".")
	if idx < 0 || idx == len(subject)-1 {
		return ""
	}
	tail := subject[idx+1:]
	if tail == "*" || tail == ">" {
		return ""
	}
	return tail
}
