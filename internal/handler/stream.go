package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StreamHandler serves the websocket feed of scoring run summaries and the
// Prometheus scrape endpoint.
type StreamHandler struct {
	Stream http.Handler
}

func (h *StreamHandler) Register(r *gin.Engine) {
	if h.Stream != nil {
		r.GET("/api/v1/stream", gin.WrapH(h.Stream))
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
