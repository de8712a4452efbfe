package services

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"basket-dashboard/internal/models"
)

// Conclusion is the closing note shown under a complete report. It is
// markdown.
const Conclusion = `- The Apriori algorithm effectively identifies frequent itemsets and meaningful association rules.
- Rules with high **lift** indicate strong associations between purchased products.
- **Confidence** measures the likelihood that a product will be bought if another is bought.
- **Support** shows how frequently a rule appears in the dataset.
- This analysis helps retailers understand customer purchase behavior and create strategies for product placement, bundling, and promotions.
`

// Title heads every rendering of a report.
const Title = "Market Basket Analysis using Apriori Algorithm"

var printer = message.NewPrinter(language.English)

// Count formats n with thousands separators.
func Count(n int) string { return printer.Sprintf("%d", n) }

// Markdown renders the report as a plain-text document. Sections for stages
// that did not run are left out.
func (r *Report) Markdown() string {
	var b strings.Builder
	p := printer

	p.Fprintf(&b, "# %s\n\n", Title)
	p.Fprintf(&b, "File: `%s`  \nRun: `%s`\n\n", r.FileName, r.RunID)

	if r.Header != nil {
		b.WriteString("## Raw Data\n\n")
		writeTable(&b, r.Header, r.Head)
	}

	if c := r.Cleaning; c != nil {
		b.WriteString("Checking for Duplicates...\n\n")
		p.Fprintf(&b, "Duplicate transactions: %d\n\n", c.DuplicatesBefore)
		p.Fprintf(&b, "Duplicate transactions after removal: %d\n\n", c.DuplicatesAfter)

		b.WriteString("## Missing Values\n\n")
		rows := make([][]string, len(c.Missing))
		for i, m := range c.Missing {
			rows[i] = []string{m.Column, Count(m.Missing)}
		}
		writeTable(&b, []string{"Column", "Missing"}, rows)
	}

	if r.Items == nil {
		return b.String()
	}
	b.WriteString("## Preprocessing\n\n")
	p.Fprintf(&b, "%d transactions over %d distinct items.\n\n", r.Transactions, len(r.Items))

	if r.FailedStage == StageMine {
		return b.String()
	}
	b.WriteString("## Frequent Itemsets\n\n")
	rows := make([][]string, len(r.Itemsets))
	for i, fi := range r.Itemsets {
		rows[i] = []string{FormatFloat(fi.Support), fi.Items.String()}
	}
	writeTable(&b, []string{"support", "itemsets"}, rows)

	if r.FailedStage == StageRules {
		return b.String()
	}
	b.WriteString("## Association Rules\n\n")
	rows = make([][]string, len(r.Rules))
	for i, rule := range r.Rules {
		rows[i] = RuleRow(rule)
	}
	writeTable(&b, RuleColumns, rows)
	p.Fprintf(&b, "Total number of association rules: %d\n\n", len(r.Rules))

	if r.Bar != nil && len(r.Bar.Bars) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", r.Bar.Title)
		rows = make([][]string, len(r.Bar.Bars))
		for i, bar := range r.Bar.Bars {
			rows[i] = []string{bar.Label, FormatFloat(bar.Value)}
		}
		writeTable(&b, []string{r.Bar.YLabel, r.Bar.XLabel}, rows)
	}

	if h := r.Heatmap; h != nil {
		b.WriteString("## Heatmap of Top 20 Rules\n\n")
		rows = make([][]string, len(h.Rows))
		for i, label := range h.Rows {
			rows[i] = append([]string{label}, make([]string, len(h.Cols))...)
			for j, c := range h.Cells[i] {
				rows[i][j+1] = fmt.Sprintf("%.2f", c.Value)
			}
		}
		writeTable(&b, append([]string{"antecedents \\ consequents"}, h.Cols...), rows)
	}

	if r.Conclusion != "" {
		b.WriteString("## Conclusion\n\n")
		b.WriteString(r.Conclusion)
	}
	return b.String()
}

// RuleColumns lists the rule table columns in display order.
var RuleColumns = []string{
	"antecedents", "consequents", "antecedent support", "consequent support",
	"support", "confidence", "lift", "leverage", "conviction",
	"zhangs_metric", "jaccard", "certainty", "kulczynski",
}

// RuleRow formats a rule for tabular display, in RuleColumns order.
func RuleRow(r models.Rule) []string {
	return []string{
		r.Antecedents.String(),
		r.Consequents.String(),
		FormatFloat(r.AntecedentSupport),
		FormatFloat(r.ConsequentSupport),
		FormatFloat(r.Support),
		FormatFloat(r.Confidence),
		FormatFloat(r.Lift),
		FormatFloat(r.Leverage),
		FormatFloat(float64(r.Conviction)),
		FormatFloat(r.ZhangsMetric),
		FormatFloat(r.Jaccard),
		FormatFloat(r.Certainty),
		FormatFloat(r.Kulczynski),
	}
}

// FormatFloat renders a metric the way the report tables show it.
func FormatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.6g", f)
}

func writeTable(b *strings.Builder, header []string, rows [][]string) {
	b.WriteString("| " + strings.Join(escapeCells(header), " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
	for _, row := range rows {
		b.WriteString("| " + strings.Join(escapeCells(row), " | ") + " |\n")
	}
	b.WriteString("\n")
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return out
}
