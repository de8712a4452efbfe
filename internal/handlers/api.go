package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"basket-dashboard/internal/config"
	"basket-dashboard/internal/errors"
	"basket-dashboard/internal/observability"
	"basket-dashboard/internal/services"
)

type APIHandlers struct {
	analyzer *services.Analyzer
	upload   config.UploadConfig
	logger   *slog.Logger
}

func NewAPIHandlers(analyzer *services.Analyzer, upload config.UploadConfig, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analyzer: analyzer,
		upload:   upload,
		logger:   logger,
	}
}

// HandleAnalyze answers with the full report as JSON.
func (h *APIHandlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	file, header, err := readUpload(w, r, h.upload.MaxBytes)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}
	defer file.Close()

	report, err := h.analyzer.Analyze(r.Context(), header.Filename, file)
	if err != nil {
		appErr := errors.Analysis(err)
		if services.TimedOut(err) {
			appErr = errors.Wrap(err, errors.CodeServiceUnavail, errors.AnalysisMessage(err))
		}
		appErr.Details = "failed stage: " + report.FailedStage
		errors.WriteError(w, h.logger, appErr, requestID)
		return
	}

	errors.WriteSuccessWithHeaders(w, report, map[string]string{
		"Cache-Control": "no-store",
	})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   config.Version,
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analyzer.Stats())
}
