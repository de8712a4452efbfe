package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"basket-dashboard/internal/config"
	apperrors "basket-dashboard/internal/errors"
	"basket-dashboard/internal/observability"
	"basket-dashboard/internal/services"
	"basket-dashboard/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	cacheMaxAge   = "public, max-age=300"
)

// PageHandlers serve full HTML pages: the dashboard and the form fallback
// used when the browser posts without JavaScript.
type PageHandlers struct {
	analyzer *services.Analyzer
	upload   config.UploadConfig
	logger   *slog.Logger
}

func NewPageHandlers(analyzer *services.Analyzer, upload config.UploadConfig, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		analyzer: analyzer,
		upload:   upload,
		logger:   logger,
	}
}

func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", cacheMaxAge)
	h.render(w, r, http.StatusOK, templates.Dashboard())
}

func (h *PageHandlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context(), h.logger)

	file, header, err := readUpload(w, r, h.upload.MaxBytes)
	if err != nil {
		logger.Warn("rejected upload", "error", err)
		status := http.StatusBadRequest
		if appErr, ok := err.(*apperrors.AppError); ok {
			status = appErr.StatusCode
		}
		h.render(w, r, status, templates.Page(nil, noticeFor(err)))
		return
	}
	defer file.Close()

	report, err := h.analyzer.Analyze(r.Context(), header.Filename, file)
	if err != nil {
		h.render(w, r, http.StatusUnprocessableEntity, templates.Page(report, apperrors.AnalysisMessage(err)))
		return
	}
	h.render(w, r, http.StatusOK, templates.Page(report, ""))
}

func (h *PageHandlers) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		h.logger.Error("render page", "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
