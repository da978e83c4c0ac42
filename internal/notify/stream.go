package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"productradar/internal/logger"
	"productradar/internal/metrics"
	"productradar/internal/scoring"
)

const (
	clientBuffer = 16
	writeTimeout = 10 * time.Second
)

// StreamMessage is the frame sent to websocket clients.
type StreamMessage struct {
	Type string             `json:"type"`
	Run  scoring.RunSummary `json:"run"`
}

// Broadcaster fans run summaries out to connected websocket clients. Slow
// clients whose buffer is full miss messages rather than blocking scoring.
type Broadcaster struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[chan []byte]struct{}
	dropped int64
}

func NewBroadcaster(log *zap.Logger) *Broadcaster {
	return &Broadcaster{logger: log, clients: map[chan []byte]struct{}{}}
}

func (b *Broadcaster) RunFinished(_ context.Context, summary scoring.RunSummary) {
	data, err := json.Marshal(StreamMessage{Type: "scoring_run", Run: summary})
	if err != nil {
		logger.OrNop(b.logger).Warn("encode stream message failed", zap.Error(err))
		return
	}
	b.broadcast(data)
}

func (b *Broadcaster) broadcast(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- data:
		default:
			b.dropped++
		}
	}
}

func (b *Broadcaster) subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	metrics.StreamClients.Inc()
	return ch
}

func (b *Broadcaster) unsubscribe(ch chan []byte) {
	b.mu.Lock()
	_, ok := b.clients[ch]
	delete(b.clients, ch)
	b.mu.Unlock()
	if ok {
		metrics.StreamClients.Dec()
	}
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// ServeHTTP upgrades the request and streams messages until the client goes away.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.OrNop(b.logger)
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		log.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// Clients never send; CloseRead handles control frames and cancels ctx on disconnect.
	ctx := conn.CloseRead(r.Context())
	ch := b.subscribe()
	defer b.unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case data := <-ch:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
