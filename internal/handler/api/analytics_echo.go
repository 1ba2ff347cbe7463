package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	models "CloudCostIQ/internal/domain/models"
	domrepo "CloudCostIQ/internal/domain/repository"
	domservice "CloudCostIQ/internal/domain/service"
	icache "CloudCostIQ/internal/service/cache"
	ametrics "CloudCostIQ/internal/service/metrics"
	"CloudCostIQ/internal/service/ratelimit"
	"CloudCostIQ/internal/services/credentials"
	"CloudCostIQ/internal/services/ml"
	"CloudCostIQ/internal/usecase"
	xhttp "CloudCostIQ/pkg/http"
	xlogger "CloudCostIQ/pkg/logger"
	"CloudCostIQ/pkg/queue"

	"github.com/labstack/echo/v4"
)

// AnalyticsHandler implements Echo-based HTTP handlers following Clean Architecture.
type AnalyticsHandler struct {
	logger    *xlogger.Logger
	analyzer  *usecase.CostAnalyzer
	optimizer domservice.ResourceOptimizer
	queue     queue.QueueService
	encryptor *credentials.Encryptor
	providers domrepo.ProviderStore
	cache     icache.BytesCache
	publisher domrepo.Publisher
	limiter   *ratelimit.Limiter
	statusTTL time.Duration
}

func NewAnalyticsHandler(logger *xlogger.Logger, analyzer *usecase.CostAnalyzer, opt domservice.ResourceOptimizer) *AnalyticsHandler {
	ametrics.Register()
	return &AnalyticsHandler{
		logger:    logger,
		analyzer:  analyzer,
		optimizer: opt,
		limiter:   ratelimit.New(),
		statusTTL: 15 * time.Second,
	}
}

// SetCache injects a response cache.
func (h *AnalyticsHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetQueue injects the retrain job queue.
func (h *AnalyticsHandler) SetQueue(q queue.QueueService) { h.queue = q }

// SetCredentials injects provider credential encryption and storage.
func (h *AnalyticsHandler) SetCredentials(e *credentials.Encryptor, store domrepo.ProviderStore) {
	h.encryptor = e
	h.providers = store
}

// SetPublisher injects the billing entry publisher for the ingest endpoint.
func (h *AnalyticsHandler) SetPublisher(p domrepo.Publisher) { h.publisher = p }

// SetStatusTTL overrides how long status responses stay cached.
func (h *AnalyticsHandler) SetStatusTTL(ttl time.Duration) {
	if ttl > 0 {
		h.statusTTL = ttl
	}
}

func (h *AnalyticsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/status", h.Status)
	g.POST("/anomaly-detection/train", h.TrainDetector)
	g.POST("/anomaly-detection/detect", h.Detect)
	g.POST("/forecasting/train", h.TrainForecaster)
	g.POST("/forecasting/predict", h.Predict)
	g.POST("/forecasting/scenario", h.Scenario)
	g.POST("/optimization/analyze", h.Optimize)
	g.POST("/combined/cost-analysis", h.CostAnalysis)
	g.POST("/retrain", h.Retrain)
	g.POST("/providers", h.SaveProvider)
	g.POST("/costs", h.Ingest)
}

// mapPipelineError translates the analytics error taxonomy into transport
// errors. Unknown errors fall through to 500.
func mapPipelineError(err error) *xhttp.AppError {
	var cfgErr *ml.ConfigurationError
	var dataErr *ml.InsufficientDataError
	var histErr *ml.InsufficientHistoryError
	var trainErr *ml.NotTrainedError
	var fitErr *ml.NotFittedError
	switch {
	case errors.As(err, &cfgErr):
		return xhttp.NewAppError("ERR_CONFIGURATION", "", cfgErr.Error(), http.StatusBadRequest)
	case errors.As(err, &dataErr):
		return xhttp.NewAppError("ERR_INSUFFICIENT_DATA", "", dataErr.Error(), http.StatusBadRequest)
	case errors.As(err, &histErr):
		return xhttp.NewAppError("ERR_INSUFFICIENT_HISTORY", "", histErr.Error(), http.StatusBadRequest)
	case errors.As(err, &trainErr):
		return xhttp.NewAppError("ERR_NOT_TRAINED", "", trainErr.Error(), http.StatusConflict)
	case errors.As(err, &fitErr):
		return xhttp.NewAppError("ERR_NOT_TRAINED", "", fitErr.Error(), http.StatusConflict)
	default:
		return nil
	}
}

func (h *AnalyticsHandler) respondError(c echo.Context, endpoint string, err error) error {
	ametrics.AnalyticsErrors.WithLabelValues(endpoint).Inc()
	h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	if appErr := mapPipelineError(err); appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.AppErrorResponse(c, err)
}

func (h *AnalyticsHandler) observe(endpoint string, start time.Time) {
	ametrics.AnalyticsLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *AnalyticsHandler) allow(c echo.Context, orgID string) bool {
	// 5 rps with small bursts per org; training is the expensive path
	return h.limiter.Allow(orgID+":"+c.Path(), 10, 5)
}

func (h *AnalyticsHandler) Status(c echo.Context) error {
	start := time.Now()
	defer h.observe("status", start)
	req := &models.StatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cacheKey := "status:" + req.OrgID
	if h.cache != nil {
		if b, ok, _ := h.cache.GetBytes(cacheKey); ok {
			return c.JSONBlob(http.StatusOK, b)
		}
	}

	res := h.analyzer.Status(req.OrgID)
	if h.cache != nil {
		if b, err := json.Marshal(xhttp.APIResponse{
			Status:  http.StatusOK,
			Message: http.StatusText(http.StatusOK),
			Data:    res,
		}); err == nil {
			_ = h.cache.SetBytes(cacheKey, b, h.statusTTL)
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) TrainForecaster(c echo.Context) error {
	start := time.Now()
	defer h.observe("forecast_train", start)
	req := &models.TrainForecasterRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, req.OrgID) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many requests", http.StatusTooManyRequests))
	}
	obs, err := models.ToObservations(req.Data)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	report, err := h.analyzer.TrainForecaster(c.Request().Context(), req.OrgID, obs, req.Days, req.Epochs)
	if err != nil {
		return h.respondError(c, "forecast_train", err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *AnalyticsHandler) Predict(c echo.Context) error {
	start := time.Now()
	defer h.observe("forecast_predict", start)
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	obs, err := models.ToObservations(req.Data)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	fc, err := h.analyzer.Forecast(c.Request().Context(), req.OrgID, obs, req.Days, req.Steps, req.Confidence, req.Recursive)
	if err != nil {
		return h.respondError(c, "forecast_predict", err)
	}
	return xhttp.SuccessResponse(c, fc)
}

func (h *AnalyticsHandler) Scenario(c echo.Context) error {
	start := time.Now()
	defer h.observe("forecast_scenario", start)
	req := &models.ScenarioForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	obs, err := models.ToObservations(req.Data)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	scenarios := make([]models.Scenario, len(req.Scenarios))
	for i, s := range req.Scenarios {
		scenarios[i] = models.Scenario{
			Name:        s.Name,
			Description: s.Description,
			Adjustments: s.Adjustments,
			Overrides:   s.Overrides,
		}
	}

	res, err := h.analyzer.ScenarioForecasts(c.Request().Context(), req.OrgID, obs, req.Days, req.Steps, scenarios)
	if err != nil {
		return h.respondError(c, "forecast_scenario", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) TrainDetector(c echo.Context) error {
	start := time.Now()
	defer h.observe("anomaly_train", start)
	req := &models.TrainDetectorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, req.OrgID) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many requests", http.StatusTooManyRequests))
	}
	obs, err := models.ToObservations(req.Data)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	report, err := h.analyzer.TrainDetector(c.Request().Context(), req.OrgID, obs, req.Days, req.Epochs)
	if err != nil {
		return h.respondError(c, "anomaly_train", err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *AnalyticsHandler) Detect(c echo.Context) error {
	start := time.Now()
	defer h.observe("anomaly_detect", start)
	req := &models.DetectRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	obs, err := models.ToObservations(req.Data)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	anomalies, err := h.analyzer.DetectAnomalies(c.Request().Context(), req.OrgID, obs, req.Days, req.Method)
	if err != nil {
		return h.respondError(c, "anomaly_detect", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"org_id":    req.OrgID,
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}

func (h *AnalyticsHandler) Optimize(c echo.Context) error {
	start := time.Now()
	defer h.observe("optimize", start)
	req := &models.OptimizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.optimizer.Analyze(req.Resources))
}

func (h *AnalyticsHandler) CostAnalysis(c echo.Context) error {
	start := time.Now()
	defer h.observe("cost_analysis", start)
	req := &models.CostAnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.analyzer.CombinedAnalysis(c.Request().Context(), req.OrgID, req.Days, req.Steps)
	if err != nil {
		return h.respondError(c, "cost_analysis", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Retrain enqueues background retraining for an org.
func (h *AnalyticsHandler) Retrain(c echo.Context) error {
	start := time.Now()
	defer h.observe("retrain", start)
	req := &models.StatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.queue == nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_QUEUE_DISABLED", "", "background retraining is not configured", http.StatusServiceUnavailable))
	}
	payload := usecase.TrainModelsPayload{OrgID: req.OrgID}
	if err := h.queue.PublishMessage(c.Request().Context(), usecase.TrainModelsType, payload); err != nil {
		return h.respondError(c, "retrain", err)
	}
	return xhttp.SuccessResponse(c, map[string]string{
		"org_id": req.OrgID,
		"state":  "queued",
	})
}

// IngestRequest carries raw billing entries for asynchronous storage.
type IngestRequest struct {
	Entries []models.CostEntry `json:"entries" validate:"required,min=1,dive"`
}

// Ingest publishes billing entries to the ingestion topic. The consumer
// writes them to storage.
func (h *AnalyticsHandler) Ingest(c echo.Context) error {
	start := time.Now()
	defer h.observe("ingest", start)
	req := &IngestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.publisher == nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_INGEST_DISABLED", "", "ingestion pipeline is not configured", http.StatusServiceUnavailable))
	}

	entries := make([]*models.CostEntry, 0, len(req.Entries))
	for i := range req.Entries {
		e := req.Entries[i]
		if e.OrgID == "" || e.Amount < 0 {
			return xhttp.BadRequestResponse(c, "entries require org_id and a non-negative amount")
		}
		if e.Date.IsZero() {
			e.Date = time.Now().UTC()
		}
		entries = append(entries, &e)
	}
	if err := h.publisher.PublishBatch(c.Request().Context(), entries); err != nil {
		return h.respondError(c, "ingest", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"accepted": len(entries),
		"state":    "queued",
	})
}

// SaveProviderRequest registers encrypted cloud provider credentials.
type SaveProviderRequest struct {
	OrgID       string `json:"org_id" validate:"required"`
	Provider    string `json:"provider" validate:"required,oneof=aws azure gcp"`
	Credentials string `json:"credentials" validate:"required"`
}

func (h *AnalyticsHandler) SaveProvider(c echo.Context) error {
	start := time.Now()
	defer h.observe("save_provider", start)
	req := &SaveProviderRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.encryptor == nil || h.providers == nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_CREDENTIALS_DISABLED", "", "credential storage is not configured", http.StatusServiceUnavailable))
	}

	sealed, err := h.encryptor.Encrypt(req.Credentials)
	if err != nil {
		return h.respondError(c, "save_provider", err)
	}
	if err := h.providers.SaveCredentials(c.Request().Context(), req.OrgID, req.Provider, sealed); err != nil {
		return h.respondError(c, "save_provider", err)
	}
	return xhttp.SuccessResponse(c, map[string]string{
		"org_id":   req.OrgID,
		"provider": req.Provider,
		"state":    "stored",
	})
}
