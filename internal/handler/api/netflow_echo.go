package api

import (
	"context"
	"errors"
	"time"

	models "NetflowWatch/internal/domain/models"
	svcmetrics "NetflowWatch/internal/service/metrics"
	"NetflowWatch/internal/usecase"
	xhttp "NetflowWatch/pkg/http"
	xlogger "NetflowWatch/pkg/logger"
	"NetflowWatch/pkg/util"

	"github.com/labstack/echo/v4"
)

// NetflowQuerier is the read side consumed by the HTTP API.
type NetflowQuerier interface {
	Total(ctx context.Context, p usecase.SeriesParams) ([]models.DailyNetflowRow, error)
	Exchanges(ctx context.Context, p usecase.SeriesParams, exchange string) ([]models.DailyNetflowRow, error)
	Anomalies(ctx context.Context, p usecase.SeriesParams) ([]models.Anomaly, error)
	TopK(ctx context.Context, p usecase.SeriesParams, k int, scope string) ([]models.DailyNetflowRow, error)
	Memory(ctx context.Context) models.MemoryView
}

// NetflowEchoHandler serves the netflow series, anomalies and alert memory.
type NetflowEchoHandler struct {
	logger *xlogger.Logger
	query  NetflowQuerier
}

func NewNetflowEchoHandler(logger *xlogger.Logger, query NetflowQuerier) *NetflowEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &NetflowEchoHandler{logger: logger, query: query}
}

func (h *NetflowEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/netflow/total", h.Total)
	g.GET("/netflow/exchanges", h.Exchanges)
	g.GET("/netflow/anomalies", h.Anomalies)
	g.GET("/netflow/topk", h.TopK)
	g.GET("/alerts/memory", h.Memory)
}

func seriesParams(req models.SeriesRequest) usecase.SeriesParams {
	from, _ := util.ParseTime(req.From)
	to, _ := util.ParseTime(req.To)
	return usecase.SeriesParams{
		From:       from,
		To:         to,
		Window:     req.Window,
		MinPeriods: req.MinPeriods,
		Z:          req.Z,
	}
}

func observe(endpoint string, start time.Time) {
	svcmetrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// fail maps input problems to 400 and everything else to 500.
func (h *NetflowEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	svcmetrics.APIErrors.WithLabelValues(endpoint).Inc()
	var ie *models.InputError
	if errors.As(err, &ie) {
		h.logger.Debug("netflow request rejected", xlogger.String("endpoint", endpoint), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(ie.Error()).WithField(ie.Field).WithError(err))
	}
	h.logger.Error("netflow usecase error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}

func (h *NetflowEchoHandler) Total(c echo.Context) error {
	defer observe("total", time.Now())
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.APIErrors.WithLabelValues("total").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.query.Total(c.Request().Context(), seriesParams(*req))
	if err != nil {
		return h.fail(c, "total", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, models.NewRowViews(rows))
}

func (h *NetflowEchoHandler) Exchanges(c echo.Context) error {
	defer observe("exchanges", time.Now())
	req := &models.ExchangeSeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.APIErrors.WithLabelValues("exchanges").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.query.Exchanges(c.Request().Context(), seriesParams(req.SeriesRequest), req.Exchange)
	if err != nil {
		return h.fail(c, "exchanges", err)
	}
	return xhttp.SuccessResponse(c, models.NewRowViews(rows))
}

func (h *NetflowEchoHandler) Anomalies(c echo.Context) error {
	defer observe("anomalies", time.Now())
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.APIErrors.WithLabelValues("anomalies").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	anoms, err := h.query.Anomalies(c.Request().Context(), seriesParams(*req))
	if err != nil {
		return h.fail(c, "anomalies", err)
	}
	return xhttp.SuccessResponse(c, models.NewAnomalyViews(anoms))
}

func (h *NetflowEchoHandler) TopK(c echo.Context) error {
	defer observe("topk", time.Now())
	req := &models.TopKRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.APIErrors.WithLabelValues("topk").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.query.TopK(c.Request().Context(), seriesParams(req.SeriesRequest), req.K, req.Scope)
	if err != nil {
		return h.fail(c, "topk", err)
	}
	return xhttp.SuccessResponse(c, models.NewRowViews(rows))
}

func (h *NetflowEchoHandler) Memory(c echo.Context) error {
	defer observe("memory", time.Now())
	return xhttp.SuccessResponse(c, h.query.Memory(c.Request().Context()))
}
