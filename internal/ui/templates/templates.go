// Package templates renders the dashboard pages and the report fragment
// patched into them.
package templates

import (
	"context"
	"html/template"
	"io"
	"strings"

	"github.com/a-h/templ"

	"basket-dashboard/internal/ingest"
	"basket-dashboard/internal/services"
)

const (
	datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"
	chartScript    = "https://cdn.jsdelivr.net/npm/chart.js@4.4.4/dist/chart.umd.min.js"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<script type="module" src="{{.DatastarSrc}}"></script>
<script src="{{.ChartSrc}}"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 0; background: #f6f7fb; color: #1f2430; }
main { max-width: 1200px; margin: 0 auto; padding: 2rem 1rem; }
h1 { font-size: 1.8rem; }
section { background: #fff; border-radius: 8px; padding: 1rem 1.25rem; margin: 1rem 0; box-shadow: 0 1px 3px rgba(0,0,0,.08); }
.upload { display: flex; gap: .75rem; align-items: center; flex-wrap: wrap; }
.scroll { overflow: auto; max-height: 420px; }
.modern-table { border-collapse: collapse; width: 100%; font-size: .85rem; }
.modern-table th, .modern-table td { border-bottom: 1px solid #e5e7ef; padding: .35rem .5rem; text-align: left; white-space: nowrap; }
.modern-table.compact { width: auto; }
.charts { display: grid; grid-template-columns: repeat(auto-fit, minmax(420px, 1fr)); gap: 1rem; }
.heatmap { border-collapse: collapse; font-size: .8rem; }
.heatmap th, .heatmap td { border: .5px solid #fff; padding: .4rem .6rem; text-align: center; }
.heatmap .axis { font-weight: normal; color: #667; }
.notice.error { background: #fdecea; color: #8a1c1c; border: 1px solid #f5c2c0; border-radius: 6px; padding: .75rem 1rem; margin: 1rem 0; }
.meta { color: #667; font-size: .85rem; }
.busy { display: none; color: #667; }
.busy.active { display: inline; }
</style>
</head>
<body data-signals='{{.Signals}}'>
<main>
<h1>{{.Title}}</h1>
<section>
<form class="upload" action="/analyze" method="post" enctype="multipart/form-data"
  data-on:submit__prevent="@post('/sse/analyze', {contentType: 'form'})"
  data-indicator:analyzing>
<label for="file">Upload Online Retail Excel File</label>
<input id="file" name="file" type="file" accept="{{.Accept}}" required>
<button type="submit" data-attr:disabled="$analyzing">Analyze</button>
<span class="busy" data-class:active="$analyzing">Running Apriori...</span>
</form>
</section>
{{.Report}}
</main>
<script>
(() => {
  const drawn = {};
  const draw = (el, config) => {
    if (!el || typeof Chart === "undefined") return;
    if (drawn[el.id]) drawn[el.id].destroy();
    drawn[el.id] = new Chart(el, config);
  };
  window.renderBar = (el, c) => {
    if (!c) return;
    draw(el, {
      type: "bar",
      data: { labels: c.bars.map(b => b.label), datasets: [{ label: c.xLabel, data: c.bars.map(b => b.value), backgroundColor: "#4c72b0" }] },
      options: { indexAxis: "y", plugins: { legend: { display: false } },
        scales: { x: { title: { display: true, text: c.xLabel } }, y: { title: { display: true, text: c.yLabel } } } },
    });
  };
  window.renderScatter = (el, c) => {
    if (!c) return;
    draw(el, {
      type: "bubble",
      data: { datasets: [{ label: "rules", data: c.points.map(p => ({ x: p.x, y: p.y, r: p.r })),
        backgroundColor: c.points.map(p => p.color + "99"), borderColor: c.points.map(p => p.color) }] },
      options: { plugins: { legend: { display: false },
          tooltip: { callbacks: { label: ctx => c.points[ctx.dataIndex].label + " (support " + c.points[ctx.dataIndex].size.toFixed(3) + ")" } } },
        scales: { x: { title: { display: true, text: c.xLabel } }, y: { title: { display: true, text: c.yLabel } } } },
    });
  };
})();
</script>
</body>
</html>`))

type pageData struct {
	Title       string
	DatastarSrc string
	ChartSrc    string
	Accept      string
	Signals     string
	Report      template.HTML
}

func newPageData(signals []byte, report string) pageData {
	return pageData{
		Title:       services.Title,
		DatastarSrc: datastarScript,
		ChartSrc:    chartScript,
		Accept:      strings.Join(ingest.Extensions, ","),
		Signals:     string(signals),
		Report:      template.HTML(report),
	}
}

// Dashboard is the landing page: the upload form and an empty report.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		signals, err := ChartSignals(nil)
		if err != nil {
			return err
		}
		return pageTemplate.Execute(w, newPageData(signals, `<div id="report" class="report"></div>`))
	})
}

// Page renders a whole page around a finished or failed run, for clients
// posting the form without JavaScript.
func Page(report *services.Report, errMsg string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fragment, err := ReportFragment(report, errMsg)
		if err != nil {
			return err
		}
		signals, err := ChartSignals(report)
		if err != nil {
			return err
		}
		return pageTemplate.Execute(w, newPageData(signals, fragment))
	})
}
