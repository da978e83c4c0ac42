package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"productradar/internal/repository"
	"productradar/internal/scoring"
)

const sparklineLength = 7

type ProductHandler struct {
	Repo       repository.Repository
	WindowDays int
	Now        func() time.Time
}

func (h *ProductHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/products")
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.GET("/:id/signals", h.signals)
	group.GET("/:id/history", h.history)
}

// @Summary List products ranked by latest composite score
// @Tags products
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Param min_score query number false "minimum composite score"
// @Param category query string false "category"
// @Success 200 {object} apiResponse
// @Router /api/v1/products [get]
func (h *ProductHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := clampLimit(intQuery(c, "limit", 50), 50, 500)
	offset := intQuery(c, "offset", 0)
	params := repository.ListRankingParams{
		Limit:    limit,
		Offset:   offset,
		MinScore: floatQueryPtr(c, "min_score"),
		Category: stringQueryPtr(c, "category"),
	}
	items, err := h.Repo.ListRanking(c.Request.Context(), params)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	total, err := h.Repo.CountRanking(c.Request.Context(), params)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	out := make([]rankedView, 0, len(items))
	for _, it := range items {
		out = append(out, rankedView{productView: toProductView(it.Product), Score: toScoreView(it.Score)})
	}
	Ok(c, out, paginationMeta(limit, offset, total))
}

type productDetail struct {
	Product   productView `json:"product"`
	Latest    *scoreView  `json:"latest_score,omitempty"`
	Sparkline []float64   `json:"sparkline"`
	Aliases   []aliasView `json:"aliases"`
	Prices    []priceView `json:"prices"`
}

// @Summary Product detail
// @Tags products
// @Param id path int true "product id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/products/{id} [get]
func (h *ProductHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid product id", nil)
		return
	}
	ctx := c.Request.Context()
	product, err := h.Repo.GetProductByID(ctx, id)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	if product == nil {
		Error(c, http.StatusNotFound, "product not found", nil)
		return
	}
	scores, err := h.Repo.ListTrendScores(ctx, id, sparklineLength)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	aliases, err := h.Repo.ListAliases(ctx, id)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	prices, err := h.Repo.ListPriceObservations(ctx, id, 20)
	if err != nil {
		Fail(c, err, nil)
		return
	}

	out := productDetail{
		Product:   toProductView(*product),
		Sparkline: make([]float64, len(scores)),
		Aliases:   make([]aliasView, 0, len(aliases)),
		Prices:    make([]priceView, 0, len(prices)),
	}
	if len(scores) > 0 {
		latest := toScoreView(scores[0])
		out.Latest = &latest
	}
	for i, s := range scores {
		out.Sparkline[len(scores)-1-i] = s.Composite
	}
	for _, a := range aliases {
		out.Aliases = append(out.Aliases, aliasView{NameKey: a.NameKey, RawName: a.RawName, Source: a.Source, CreatedAt: a.CreatedAt})
	}
	for _, p := range prices {
		out.Prices = append(out.Prices, priceView{Price: p.Price, Source: p.Source, ObservedAt: p.ObservedAt})
	}
	Ok(c, out, nil)
}

// @Summary Signals in the scoring window, grouped by source
// @Tags products
// @Param id path int true "product id"
// @Success 200 {object} apiResponse
// @Router /api/v1/products/{id}/signals [get]
func (h *ProductHandler) signals(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid product id", nil)
		return
	}
	from, to := scoring.Window(h.now(), h.WindowDays)
	items, err := h.Repo.ListWindowedSignals(c.Request.Context(), id, from, to)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	grouped := map[string][]signalView{}
	for _, it := range items {
		grouped[it.Source] = append(grouped[it.Source], toSignalView(it))
	}
	Ok(c, grouped, map[string]any{"from": from, "to": to, "total": len(items)})
}

// @Summary Composite score history, newest first
// @Tags products
// @Param id path int true "product id"
// @Param limit query int false "number of snapshots"
// @Success 200 {object} apiResponse
// @Router /api/v1/products/{id}/history [get]
func (h *ProductHandler) history(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id, ok := idParam(c)
	if !ok {
		Error(c, http.StatusBadRequest, "invalid product id", nil)
		return
	}
	limit := clampLimit(intQuery(c, "limit", 30), 30, 500)
	items, err := h.Repo.ListTrendScores(c.Request.Context(), id, limit)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	out := make([]scoreView, 0, len(items))
	for _, it := range items {
		out = append(out, toScoreView(it))
	}
	Ok(c, out, nil)
}

func (h *ProductHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}
