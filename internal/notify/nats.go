// Package notify pushes scoring run summaries to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"productradar/internal/logger"
	"productradar/internal/scoring"
)

const DefaultScoreSubject = "productradar.scores"

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes each finished scoring run as JSON.
type NATSNotifier struct {
	pub     Publisher
	subject string
	logger  *zap.Logger
}

func NewNATSNotifier(pub Publisher, subject string, log *zap.Logger) *NATSNotifier {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = DefaultScoreSubject
	}
	return &NATSNotifier{pub: pub, subject: subject, logger: log}
}

func (n *NATSNotifier) RunFinished(_ context.Context, summary scoring.RunSummary) {
	if n == nil || n.pub == nil {
		return
	}
	log := logger.OrNop(n.logger)
	data, err := json.Marshal(summary)
	if err != nil {
		log.Warn("encode run summary failed", zap.String("run_id", summary.RunID), zap.Error(err))
		return
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		log.Warn("publish run summary failed", zap.String("subject", n.subject), zap.String("run_id", summary.RunID), zap.Error(err))
		return
	}
	log.Debug("run summary published", zap.String("subject", n.subject), zap.String("run_id", summary.RunID))
}
