package handlers

import (
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"basket-dashboard/internal/config"
	apperrors "basket-dashboard/internal/errors"
	"basket-dashboard/internal/observability"
	"basket-dashboard/internal/services"
	"basket-dashboard/internal/ui/templates"
)

type SSEHandlers struct {
	analyzer *services.Analyzer
	upload   config.UploadConfig
	logger   *slog.Logger
}

func NewSSEHandlers(analyzer *services.Analyzer, upload config.UploadConfig, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analyzer: analyzer,
		upload:   upload,
		logger:   logger,
	}
}

// HandleAnalyze runs the pipeline on the uploaded file and patches the
// report and chart signals into the page. Failures are patched in as a
// notice; the stream itself always completes.
func (h *SSEHandlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context(), h.logger)

	// The body must be consumed before the event stream starts.
	file, header, uploadErr := readUpload(w, r, h.upload.MaxBytes)

	sse := datastar.NewSSE(w, r)

	if uploadErr != nil {
		logger.Warn("rejected upload", "error", uploadErr)
		h.patch(sse, logger, nil, noticeFor(uploadErr))
		return
	}
	defer file.Close()

	report, err := h.analyzer.Analyze(r.Context(), header.Filename, file)
	notice := ""
	if err != nil {
		notice = apperrors.AnalysisMessage(err)
	}
	h.patch(sse, logger, report, notice)
	if report != nil {
		logger.Debug("report streamed", "run_id", report.RunID, "complete", report.Complete())
	}
}

func (h *SSEHandlers) patch(sse *datastar.ServerSentEventGenerator, logger *slog.Logger, report *services.Report, notice string) {
	html, err := templates.ReportFragment(report, notice)
	if err != nil {
		logger.Error("render report", "error", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		logger.Warn("patch report", "error", err)
		return
	}

	signals, err := templates.ChartSignals(report)
	if err != nil {
		logger.Error("marshal chart signals", "error", err)
		return
	}
	if err := sse.PatchSignals(signals); err != nil {
		logger.Warn("patch chart signals", "error", err)
	}
}
