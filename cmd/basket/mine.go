package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"basket-dashboard/internal/config"
	apperrors "basket-dashboard/internal/errors"
	"basket-dashboard/internal/observability"
	"basket-dashboard/internal/services"
)

var formats = []string{"markdown", "json", "yaml"}

type mineOptions struct {
	minSupport   float64
	metric       string
	minThreshold float64
	maxLen       int
	workers      int
	sheetName    string
	sheetIndex   int
	format       string
	output       string
}

func newMineCmd(root *rootOptions) *cobra.Command {
	opts := &mineOptions{}

	cmd := &cobra.Command{
		Use:   "mine <file>",
		Short: "Mine frequent itemsets and association rules from a spreadsheet",
		Example: `  basket mine online_retail.xlsx
  basket mine baskets.csv --min-support 0.05 --metric confidence --min-threshold 0.6
  basket mine online_retail.xlsx --format json --output report.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configFile)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}
			return runMine(cmd, root, opts, cfg, args[0])
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.minSupport, "min-support", 0, "minimum itemset support in (0, 1] (default from config, 0.02)")
	f.StringVar(&opts.metric, "metric", "", "rule metric to filter on (default from config, lift)")
	f.Float64Var(&opts.minThreshold, "min-threshold", 0, "minimum value of the rule metric (default from config, 1.0)")
	f.IntVar(&opts.maxLen, "max-len", 0, "longest itemset to mine, 0 for no limit")
	f.IntVar(&opts.workers, "workers", 0, "goroutines counting supports, 0 for GOMAXPROCS")
	f.StringVar(&opts.sheetName, "sheet-name", "", "workbook sheet to read by name")
	f.IntVar(&opts.sheetIndex, "sheet-index", 0, "workbook sheet to read by 1-based position")
	f.StringVarP(&opts.format, "format", "f", "markdown", "output format: markdown, json or yaml")
	f.StringVarP(&opts.output, "output", "o", "", "write the report to a file instead of stdout")
	return cmd
}

// apply overrides cfg with the flags set on the command line.
func (o *mineOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("min-support") {
		cfg.Mining.MinSupport = o.minSupport
	}
	if f.Changed("metric") {
		cfg.Mining.Metric = o.metric
	}
	if f.Changed("min-threshold") {
		cfg.Mining.MinThreshold = o.minThreshold
	}
	if f.Changed("max-len") {
		cfg.Mining.MaxLen = o.maxLen
	}
	if f.Changed("workers") {
		cfg.Mining.Workers = o.workers
	}
	if f.Changed("sheet-name") {
		cfg.Upload.SheetName = o.sheetName
	}
	if f.Changed("sheet-index") {
		cfg.Upload.SheetIndex = o.sheetIndex
	}
	if !slices.Contains(formats, o.format) {
		return fmt.Errorf("unknown format %q (use one of: markdown, json, yaml)", o.format)
	}
	return cfg.Mining.Validate()
}

func runMine(cmd *cobra.Command, root *rootOptions, opts *mineOptions, cfg *config.Config, path string) error {
	logCfg := config.LoggerConfig{Level: "warn", Format: "text"}
	if root.debug {
		logCfg.Level = "debug"
	}
	logger := observability.NewLoggerTo(cmd.ErrOrStderr(), logCfg)

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	analyzer := services.NewAnalyzer(cfg.Mining, cfg.Upload, logger)
	report, runErr := analyzer.Analyze(cmd.Context(), path, file)

	out := cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := writeReport(out, report, opts.format); err != nil {
		return err
	}

	if runErr != nil {
		return errors.New(apperrors.AnalysisMessage(runErr))
	}
	return nil
}

func writeReport(w io.Writer, report *services.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, report.Markdown())
		return err
	}
}
