package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"productradar/internal/logger"
	"productradar/internal/metrics"
	"productradar/internal/repository"
	"productradar/internal/signal"
)

const maxEventBody = 8 << 20

type SignalHandler struct {
	Repo   repository.Repository
	Ingest signal.Ingester
	Logger *zap.Logger
}

func (h *SignalHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/events", h.postEvents)
	group := r.Group("/api/v1/signals")
	group.GET("", h.listSignals)
	group.GET("/sources", h.listSources)
}

// @Summary Ingest one event or an array of events
// @Tags signals
// @Accept json
// @Param body body signal.Event true "event or array of events"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v1/events [post]
func (h *SignalHandler) postEvents(c *gin.Context) {
	if h.Ingest == nil {
		Error(c, http.StatusInternalServerError, "ingestor unavailable", nil)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxEventBody))
	if err != nil {
		Error(c, http.StatusRequestEntityTooLarge, "body too large", nil)
		return
	}
	events, decodeErrs := signal.DecodeEvents(body)
	if len(events) == 0 {
		msg := "no events"
		if len(decodeErrs) > 0 {
			msg = decodeErrs[0].Error()
		}
		Error(c, http.StatusBadRequest, msg, nil)
		return
	}

	res, err := h.Ingest.Ingest(c.Request.Context(), events)
	for _, derr := range decodeErrs {
		reason := signal.Reason(derr)
		metrics.IngestEventsTotal.WithLabelValues("unknown", "dropped", reason).Inc()
		res.Merge(signal.IngestResult{Dropped: 1, DropReasons: map[string]int{reason: 1}})
	}
	if err != nil {
		logger.OrNop(h.Logger).Warn("event ingestion failed", zap.Int("events", len(events)), zap.Error(err))
		Fail(c, err, map[string]any{"result": res})
		return
	}
	Ok(c, res, nil)
}

// @Summary List raw signals, newest first
// @Tags signals
// @Param product_id query int false "product id"
// @Param source query string false "source"
// @Param signal_type query string false "signal type"
// @Param since query string false "RFC3339 lower bound"
// @Param until query string false "RFC3339 upper bound"
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/signals [get]
func (h *SignalHandler) listSignals(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := clampLimit(intQuery(c, "limit", 50), 50, 500)
	offset := intQuery(c, "offset", 0)
	params := repository.ListSignalsParams{
		Limit:      limit,
		Offset:     offset,
		Source:     stringQueryPtr(c, "source"),
		SignalType: stringQueryPtr(c, "signal_type"),
		Since:      timeQueryPtr(c, "since"),
		Until:      timeQueryPtr(c, "until"),
	}
	if v := intQuery(c, "product_id", 0); v > 0 {
		pid := uint64(v)
		params.ProductID = &pid
	}
	items, err := h.Repo.ListSignals(c.Request.Context(), params)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	out := make([]signalView, 0, len(items))
	for _, it := range items {
		out = append(out, toSignalView(it))
	}
	Ok(c, out, paginationMeta(limit, offset, int64(offset+len(items))))
}

// @Summary Collector health and counters
// @Tags signals
// @Success 200 {object} apiResponse
// @Router /api/v1/signals/sources [get]
func (h *SignalHandler) listSources(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListSignalSources(c.Request.Context())
	if err != nil {
		Fail(c, err, nil)
		return
	}
	out := make([]sourceView, 0, len(items))
	for _, it := range items {
		out = append(out, toSourceView(it))
	}
	Ok(c, out, nil)
}
