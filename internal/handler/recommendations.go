package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"productradar/internal/recommend"
	"productradar/internal/service"
)

type RecommendationHandler struct {
	Recommender *recommend.Recommender
	Settings    *service.SystemSettingsService
	// DefaultLimit applies when the request has no limit.
	DefaultLimit int
}

func (h *RecommendationHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/recommendations", h.list)
}

// @Summary Dropshipping recommendations
// @Tags recommendations
// @Param limit query int false "number of products"
// @Param refresh query bool false "bypass the cache"
// @Success 200 {object} apiResponse
// @Failure 503 {object} apiResponse
// @Router /api/v1/recommendations [get]
func (h *RecommendationHandler) list(c *gin.Context) {
	if h.Recommender == nil {
		Error(c, http.StatusInternalServerError, "recommender unavailable", nil)
		return
	}
	ctx := c.Request.Context()
	if !h.Settings.IsEnabled(ctx, service.FeatureRecommender, true) {
		Error(c, http.StatusServiceUnavailable, "recommender disabled", nil)
		return
	}
	def := h.DefaultLimit
	if def <= 0 {
		def = recommend.DefaultLimit
	}
	n := clampLimit(intQuery(c, "limit", def), def, 50)
	if boolQueryDefault(c, "refresh", false) {
		_ = h.Recommender.Invalidate(ctx, n)
	}
	recs, err := h.Recommender.Recommend(ctx, n)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Ok(c, recs, map[string]any{"limit": n, "count": len(recs)})
}
