package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"basket-dashboard/internal/basket"
	"basket-dashboard/internal/charts"
	"basket-dashboard/internal/config"
	"basket-dashboard/internal/ingest"
	"basket-dashboard/internal/mining"
	"basket-dashboard/internal/models"
	"basket-dashboard/internal/observability"
)

const headRows = 10

// Pipeline stage names, in execution order.
const (
	StageIngest  = "ingest"
	StageClean   = "clean"
	StageEncode  = "encode"
	StageMine    = "mine"
	StageRules   = "rules"
	StageCharts  = "charts"
	StageHeatmap = "heatmap"
)

// Report is the outcome of one analysis run. After a failure it holds
// everything computed before the failing stage.
type Report struct {
	RunID        string                   `json:"run_id" yaml:"run_id"`
	FileName     string                   `json:"file_name" yaml:"file_name"`
	CreatedAt    time.Time                `json:"created_at" yaml:"created_at"`
	Duration     time.Duration            `json:"duration" yaml:"duration"`
	Header       []string                 `json:"header" yaml:"header"`
	Head         [][]string               `json:"head" yaml:"head"`
	Cleaning     *models.CleaningSummary  `json:"cleaning,omitempty" yaml:"cleaning,omitempty"`
	Items        []string                 `json:"items,omitempty" yaml:"items,omitempty"`
	Transactions int                      `json:"transactions" yaml:"transactions"`
	Itemsets     []models.FrequentItemset `json:"frequent_itemsets" yaml:"frequent_itemsets"`
	Rules        []models.Rule            `json:"rules" yaml:"rules"`
	Bar          *charts.BarChart         `json:"bar,omitempty" yaml:"bar,omitempty"`
	Scatter      *charts.ScatterChart     `json:"scatter,omitempty" yaml:"scatter,omitempty"`
	Heatmap      *charts.Pivot            `json:"heatmap,omitempty" yaml:"heatmap,omitempty"`
	Conclusion   string                   `json:"conclusion,omitempty" yaml:"conclusion,omitempty"`
	// FailedStage names the stage that stopped the run; empty on success.
	FailedStage string `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
}

// Complete reports whether every stage ran.
func (r *Report) Complete() bool { return r.FailedStage == "" && r.Conclusion != "" }

type Analyzer struct {
	mining config.MiningConfig
	upload config.UploadConfig
	logger *slog.Logger

	runs         atomic.Int64
	failures     atomic.Int64
	lastDuration atomic.Int64
	lastRun      atomic.Int64
}

func NewAnalyzer(mining config.MiningConfig, upload config.UploadConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		mining: mining,
		upload: upload,
		logger: logger,
	}
}

// Analyze runs the whole pipeline over one uploaded file. On error the
// returned report is never nil and carries the stages that completed.
func (a *Analyzer) Analyze(ctx context.Context, name string, r io.Reader) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:     uuid.NewString(),
		FileName:  name,
		CreatedAt: start,
		Itemsets:  []models.FrequentItemset{},
		Rules:     []models.Rule{},
	}

	if a.mining.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.mining.AnalysisTimeout)
		defer cancel()
	}
	ctx, span := observability.StartSpan(ctx, "analyze")
	span.SetTag("run_id", report.RunID)
	span.SetTag("file", name)

	err := a.run(ctx, report, r)

	report.Duration = time.Since(start)
	a.runs.Add(1)
	a.lastDuration.Store(int64(report.Duration))
	a.lastRun.Store(start.UnixNano())
	if err != nil {
		a.failures.Add(1)
		span.SetError(err)
	}
	span.Finish()

	if err != nil {
		a.logger.WarnContext(ctx, "analysis failed", append(span.LogAttrs(), "failed_stage", report.FailedStage)...)
		return report, err
	}
	a.logger.InfoContext(ctx, "analysis complete", append(span.LogAttrs(),
		"rows", report.Cleaning.RowsAfter,
		"items", len(report.Items),
		"itemsets", len(report.Itemsets),
		"rules", len(report.Rules),
	)...)
	return report, nil
}

func (a *Analyzer) run(ctx context.Context, report *Report, r io.Reader) (err error) {
	var (
		table   *models.Table
		matrix  basket.Matrix
		current string
	)
	defer func() {
		if p := recover(); p != nil {
			a.logger.ErrorContext(ctx, "pipeline panic", "stage", current, "panic", p, "stack", string(debug.Stack()))
			report.FailedStage = current
			err = fmt.Errorf("%s: unexpected failure: %v", current, p)
		}
	}()

	steps := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{StageIngest, func(context.Context) error {
			var err error
			table, err = ingest.Read(report.FileName, r, ingest.Options{
				SheetName:  a.upload.SheetName,
				SheetIndex: a.upload.SheetIndex,
			})
			if err != nil {
				return err
			}
			report.Header = table.Header
			report.Head = ingest.Head(table, headRows)
			return nil
		}},
		{StageClean, func(context.Context) error {
			var summary models.CleaningSummary
			table, summary = basket.Clean(table)
			report.Cleaning = &summary
			return nil
		}},
		{StageEncode, func(context.Context) error {
			tx, err := basket.Transactions(table)
			if err != nil {
				return err
			}
			if matrix, err = basket.Encode(tx); err != nil {
				return err
			}
			report.Items = matrix.Columns
			report.Transactions = len(matrix.Rows)
			return nil
		}},
		{StageMine, func(ctx context.Context) error {
			itemsets, err := mining.Apriori(ctx, matrix, mining.Options{
				MinSupport: a.mining.MinSupport,
				MaxLen:     a.mining.MaxLen,
				Workers:    a.mining.Workers,
			})
			if err != nil {
				return err
			}
			report.Itemsets = append(report.Itemsets, itemsets...)
			return nil
		}},
		{StageRules, func(context.Context) error {
			metric, err := mining.ParseMetric(a.mining.Metric)
			if err != nil {
				return err
			}
			rules, err := mining.AssociationRules(report.Itemsets, mining.RuleOptions{
				Metric:       metric,
				MinThreshold: a.mining.MinThreshold,
			})
			if err != nil {
				return err
			}
			if rules == nil {
				rules = []models.Rule{}
			}
			report.Rules = rules
			return nil
		}},
		{StageCharts, func(context.Context) error {
			bar := charts.LiftBar(report.Rules)
			scatter := charts.Scatter(report.Rules)
			report.Bar, report.Scatter = &bar, &scatter
			return nil
		}},
		{StageHeatmap, func(context.Context) error {
			pivot, err := charts.LiftHeatmap(report.Rules, charts.TopHeatmapRules)
			if err != nil {
				return err
			}
			report.Heatmap = &pivot
			return nil
		}},
	}

	for _, step := range steps {
		current = step.name
		if err := ctx.Err(); err != nil {
			report.FailedStage = step.name
			return fmt.Errorf("%s: %w", step.name, err)
		}
		if err := a.stage(ctx, step.name, step.fn); err != nil {
			report.FailedStage = step.name
			return err
		}
	}
	report.Conclusion = Conclusion
	return nil
}

func (a *Analyzer) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, "analyze."+name)
	span.SetTag("stage", name)
	err := fn(ctx)
	if err != nil {
		span.SetError(err)
	}
	span.Finish()

	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	a.logger.Log(ctx, level, "pipeline stage", span.LogAttrs()...)
	return err
}

func (a *Analyzer) Stats() models.RunStats {
	stats := models.RunStats{
		Runs:         a.runs.Load(),
		Failures:     a.failures.Load(),
		LastDuration: time.Duration(a.lastDuration.Load()),
	}
	if ns := a.lastRun.Load(); ns != 0 {
		stats.LastRun = time.Unix(0, ns)
	}
	return stats
}

// TimedOut reports whether a run was cut short by the analysis timeout.
func TimedOut(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
