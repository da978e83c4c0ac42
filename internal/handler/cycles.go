package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"productradar/internal/logger"
	"productradar/internal/repository"
	"productradar/internal/service"
)

// CycleHandler exposes the same guarded entry points the cron scheduler uses.
type CycleHandler struct {
	Cycles *service.CycleService
	Repo   repository.Repository
	Logger *zap.Logger
}

func (h *CycleHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/cycles")
	group.POST("/scoring", h.runScoring)
	group.POST("/collect", h.collectAll)
	group.POST("/collect/:source", h.collect)
	group.GET("/running", h.running)
	r.GET("/api/v1/runs", h.listRuns)
}

// @Summary Run a scoring cycle now
// @Tags cycles
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/cycles/scoring [post]
func (h *CycleHandler) runScoring(c *gin.Context) {
	if h.Cycles == nil {
		Error(c, http.StatusInternalServerError, "cycle service unavailable", nil)
		return
	}
	run, err := h.Cycles.RunScoring(c.Request.Context())
	if err != nil {
		logger.OrNop(h.Logger).Info("scoring trigger rejected", zap.Error(err))
		var meta map[string]any
		if run.ID != "" {
			meta = map[string]any{"run": toRunView(run)}
		}
		Fail(c, err, meta)
		return
	}
	Ok(c, toRunView(run), nil)
}

// @Summary Run one collector now
// @Tags cycles
// @Param source path string true "collector name"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/cycles/collect/{source} [post]
func (h *CycleHandler) collect(c *gin.Context) {
	if h.Cycles == nil {
		Error(c, http.StatusInternalServerError, "cycle service unavailable", nil)
		return
	}
	res, err := h.Cycles.Collect(c.Request.Context(), c.Param("source"))
	if err != nil {
		Fail(c, err, map[string]any{"result": res})
		return
	}
	Ok(c, res, nil)
}

// @Summary Run every enabled collector now
// @Tags cycles
// @Success 200 {object} apiResponse
// @Router /api/v1/cycles/collect [post]
func (h *CycleHandler) collectAll(c *gin.Context) {
	if h.Cycles == nil {
		Error(c, http.StatusInternalServerError, "cycle service unavailable", nil)
		return
	}
	res, err := h.Cycles.CollectAll(c.Request.Context())
	if err != nil {
		Fail(c, err, map[string]any{"result": res})
		return
	}
	Ok(c, res, map[string]any{"sources": h.Cycles.Sources()})
}

// @Summary Jobs currently executing on this instance
// @Tags cycles
// @Success 200 {object} apiResponse
// @Router /api/v1/cycles/running [get]
func (h *CycleHandler) running(c *gin.Context) {
	if h.Cycles == nil || h.Cycles.Guard == nil {
		Ok(c, map[string]time.Time{}, nil)
		return
	}
	Ok(c, h.Cycles.Guard.Running(), nil)
}

// @Summary Recent scoring runs
// @Tags cycles
// @Param limit query int false "number of runs"
// @Success 200 {object} apiResponse
// @Router /api/v1/runs [get]
func (h *CycleHandler) listRuns(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListScoringRuns(c.Request.Context(), clampLimit(intQuery(c, "limit", 20), 20, 200))
	if err != nil {
		Fail(c, err, nil)
		return
	}
	out := make([]runView, 0, len(items))
	for _, it := range items {
		out = append(out, toRunView(it))
	}
	Ok(c, out, nil)
}
