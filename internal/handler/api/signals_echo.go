package api

import (
	"encoding/json"
	"time"

	models "WalletPulse/internal/domain/models"
	icache "WalletPulse/internal/service/cache"
	"WalletPulse/internal/service/metrics"
	"WalletPulse/internal/service/ratelimit"
	"WalletPulse/internal/usecase"
	xhttp "WalletPulse/pkg/http"
	xlogger "WalletPulse/pkg/logger"
	xutil "WalletPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// SignalsEchoHandler serves the read-only signal API.
type SignalsEchoHandler struct {
	logger *xlogger.Logger
	reader *usecase.SignalReader
	cache  icache.BytesCache
	rl     *ratelimit.Limiter
}

func NewSignalsEchoHandler(logger *xlogger.Logger, reader *usecase.SignalReader) *SignalsEchoHandler {
	metrics.Register()
	return &SignalsEchoHandler{logger: logger, reader: reader, rl: ratelimit.New()}
}

// SetCache injects a response cache.
func (h *SignalsEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signal", h.Latest)
	g.GET("/signals", h.History)
	g.GET("/alerts", h.Alerts)
	g.GET("/health", h.Health)
}

func (h *SignalsEchoHandler) Latest(c echo.Context) error {
	start := time.Now()
	endpoint := "signal"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.LatestSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":signal", 10, 5) {
		return xhttp.TooManyRequestsResponse(c)
	}

	cacheKey := "signal:" + req.Instrument
	if b, ok := h.cached(cacheKey); ok {
		return rawJSON(c, b)
	}

	res, err := h.reader.Latest(c.Request().Context(), req.Instrument)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("signal read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if res == nil {
		return xhttp.NotFoundResponse(c, "no signal computed yet")
	}
	h.store(cacheKey, res, 15*time.Second)
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) History(c echo.Context) error {
	start := time.Now()
	endpoint := "signals"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.SignalHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":signals", 5, 2) {
		return xhttp.TooManyRequestsResponse(c)
	}

	res, err := h.reader.History(c.Request().Context(), req.Instrument, req.N)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("signal history read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	res = filterPeriodRange(res,
		xhttp.ParseTimeDefault(c.QueryParam("from"), time.Time{}),
		xhttp.ParseTimeDefault(c.QueryParam("to"), time.Time{}))
	return xhttp.ListResponse(c, res, int64(len(res)))
}

// filterPeriodRange keeps periods inside the optional [from, to] window,
// both ends floored to period boundaries. Zero times leave that end open.
func filterPeriodRange(rows []*usecase.SignalView, from, to time.Time) []*usecase.SignalView {
	if from.IsZero() && to.IsZero() {
		return rows
	}
	from, to = xutil.AlignPeriodRange(from, to)
	out := make([]*usecase.SignalView, 0, len(rows))
	for _, r := range rows {
		if !from.IsZero() && r.PeriodTS.Before(from) {
			continue
		}
		if !to.IsZero() && r.PeriodTS.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (h *SignalsEchoHandler) Alerts(c echo.Context) error {
	start := time.Now()
	endpoint := "alerts"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.AlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":alerts", 5, 2) {
		return xhttp.TooManyRequestsResponse(c)
	}

	res, err := h.reader.Alerts(c.Request().Context(), req.Subject, req.N)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("alerts read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *SignalsEchoHandler) Health(c echo.Context) error {
	start := time.Now()
	endpoint := "health"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	res, err := h.reader.Health(c.Request().Context())
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("health read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if res == nil {
		return xhttp.NotFoundResponse(c, "no health recorded yet")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) cached(key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		h.logger.Warn("cache get error", xlogger.Error(err))
		return nil, false
	}
	return b, ok
}

func (h *SignalsEchoHandler) store(key string, v interface{}, ttl time.Duration) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := h.cache.SetBytes(key, b, ttl); err != nil {
		h.logger.Warn("cache set error", xlogger.Error(err))
	}
}

func rawJSON(c echo.Context, body []byte) error {
	var v json.RawMessage = body
	return xhttp.SuccessResponse(c, v)
}
