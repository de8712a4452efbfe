package templates

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/yuin/goldmark"

	"basket-dashboard/internal/charts"
	"basket-dashboard/internal/services"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"count":   services.Count,
	"metric":  services.FormatFloat,
	"ruleRow": services.RuleRow,
	"cell":    func(v float64) string { return fmt.Sprintf("%.2f", v) },
}).Parse(`<div id="report" class="report">
{{with .Report}}
{{if .Header}}
<section>
<h2>Raw Data</h2>
<p class="meta">{{.FileName}}</p>
<div class="scroll"><table class="modern-table">
<thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>{{range .Head}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody>
</table></div>
</section>
{{end}}
{{with .Cleaning}}
<section>
<p>Checking for Duplicates...</p>
<p>Duplicate transactions: <strong>{{count .DuplicatesBefore}}</strong></p>
<p>Duplicate transactions after removal: <strong>{{count .DuplicatesAfter}}</strong></p>
<h2>Missing Values</h2>
<table class="modern-table compact">
<thead><tr><th>Column</th><th>Missing</th></tr></thead>
<tbody>{{range .Missing}}<tr><td>{{.Column}}</td><td>{{count .Missing}}</td></tr>{{end}}</tbody>
</table>
</section>
{{end}}
{{if .Items}}
<section>
<h2>Preprocessing</h2>
<p>{{count .Transactions}} transactions over {{count (len .Items)}} distinct items.</p>
</section>
{{if $.ShowItemsets}}
<section>
<h2>Frequent Itemsets</h2>
<div class="scroll"><table class="modern-table">
<thead><tr><th>support</th><th>itemsets</th></tr></thead>
<tbody>{{range .Itemsets}}<tr><td>{{metric .Support}}</td><td>{{.Items}}</td></tr>{{end}}</tbody>
</table></div>
</section>
{{end}}
{{if $.ShowRules}}
<section>
<h2>Association Rules</h2>
<div class="scroll"><table class="modern-table">
<thead><tr>{{range $.RuleColumns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>{{range .Rules}}<tr>{{range ruleRow .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody>
</table></div>
<p>Total number of association rules: <strong>{{count (len .Rules)}}</strong></p>
</section>
{{end}}
{{end}}
{{if .Bar}}
<section class="charts">
<div class="chart-card"><h3>{{.Bar.Title}}</h3><canvas id="bar-chart" data-effect="window.renderBar && window.renderBar(el, $barChart)"></canvas></div>
<div class="chart-card"><h3>{{.Scatter.Title}}</h3><canvas id="scatter-chart" data-effect="window.renderScatter && window.renderScatter(el, $scatterChart)"></canvas></div>
</section>
{{end}}
{{with .Heatmap}}
<section>
<h2>Heatmap of Top 20 Rules</h2>
<h3>{{.Title}}</h3>
<div class="scroll"><table class="heatmap">
<thead><tr><th class="axis">{{.YLabel}} \ {{.XLabel}}</th>{{range .Cols}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>{{range $i, $row := .Cells}}<tr><th>{{index $.Report.Heatmap.Rows $i}}</th>{{range $row}}<td style="background-color: {{.Color}}">{{cell .Value}}</td>{{end}}</tr>{{end}}</tbody>
</table></div>
</section>
{{end}}
{{end}}
{{if .Conclusion}}
<section class="conclusion">
<h2>Conclusion</h2>
{{.Conclusion}}
</section>
{{end}}
{{if .Error}}<div class="notice error" role="alert">{{.Error}}</div>{{end}}
</div>`))

type reportData struct {
	Report       *services.Report
	Error        string
	Conclusion   template.HTML
	RuleColumns  []string
	ShowItemsets bool
	ShowRules    bool
}

// ReportFragment renders the #report element for a run. errMsg is shown as
// the failure notice below whatever part of the report was computed. A nil
// report renders only the notice.
func ReportFragment(report *services.Report, errMsg string) (string, error) {
	data := reportData{
		Report:      report,
		Error:       errMsg,
		RuleColumns: services.RuleColumns,
	}
	if report != nil {
		data.ShowItemsets = report.FailedStage != services.StageMine
		data.ShowRules = data.ShowItemsets && report.FailedStage != services.StageRules
		if report.Conclusion != "" {
			html, err := markdownHTML(report.Conclusion)
			if err != nil {
				return "", err
			}
			data.Conclusion = html
		}
	}

	var buf strings.Builder
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

var (
	markdownMu    sync.Mutex
	markdownCache = map[string]template.HTML{}
)

// markdownHTML converts trusted markdown to HTML. The conclusion is a
// constant, so conversions are memoized.
func markdownHTML(src string) (template.HTML, error) {
	markdownMu.Lock()
	defer markdownMu.Unlock()
	if html, ok := markdownCache[src]; ok {
		return html, nil
	}
	var buf bytes.Buffer
	if err := goldmark.New().Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	html := template.HTML(buf.String())
	markdownCache[src] = html
	return html, nil
}

type chartSignals struct {
	BarChart     *charts.BarChart     `json:"barChart"`
	ScatterChart *charts.ScatterChart `json:"scatterChart"`
}

// ChartSignals returns the Datastar signals the bar and scatter charts are
// drawn from. Views a failed run never reached are null.
func ChartSignals(report *services.Report) ([]byte, error) {
	var s chartSignals
	if report != nil {
		s.BarChart, s.ScatterChart = report.Bar, report.Scatter
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal chart signals: %w", err)
	}
	return b, nil
}
