// Package charts turns association rules into chart-ready views. Every view is
// a pure function of the rule list.
package charts

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"basket-dashboard/internal/models"
)

const (
	TopBarRules     = 10
	TopHeatmapRules = 20

	minRadius = 4.0
	maxRadius = 18.0
)

var (
	ErrEmptyPivot    = errors.New("no rules to pivot")
	ErrDuplicatePair = errors.New("pivot index contains duplicate entries")
)

// TopByLift returns the n rules with the highest lift. Ties keep their input
// order.
func TopByLift(rules []models.Rule, n int) []models.Rule {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b models.Rule) int {
		return cmp.Compare(b.Lift, a.Lift)
	})
	return sorted[:min(n, len(sorted))]
}

type Bar struct {
	Label string  `json:"label" yaml:"label"`
	Value float64 `json:"value" yaml:"value"`
}

type BarChart struct {
	Title  string `json:"title" yaml:"title"`
	XLabel string `json:"xLabel" yaml:"xLabel"`
	YLabel string `json:"yLabel" yaml:"yLabel"`
	Bars   []Bar  `json:"bars" yaml:"bars"`
}

// LiftBar plots the lift of the top-10 rules per antecedent. Rules sharing an
// antecedent are drawn as a single bar at their mean lift.
func LiftBar(rules []models.Rule) BarChart {
	chart := BarChart{
		Title:  "Top 10 Association Rules by Lift",
		XLabel: "Lift",
		YLabel: "Antecedents",
		Bars:   []Bar{},
	}
	pos := map[string]int{}
	counts := []int{}
	for _, r := range TopByLift(rules, TopBarRules) {
		label := r.Antecedents.String()
		i, ok := pos[label]
		if !ok {
			pos[label] = len(chart.Bars)
			chart.Bars = append(chart.Bars, Bar{Label: label})
			counts = append(counts, 0)
			i = len(chart.Bars) - 1
		}
		chart.Bars[i].Value += r.Lift
		counts[i]++
	}
	for i := range chart.Bars {
		chart.Bars[i].Value /= float64(counts[i])
	}
	return chart
}

type Point struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Size   float64 `json:"size" yaml:"size"`
	Radius float64 `json:"r" yaml:"r"`
	Color  string  `json:"color" yaml:"color"`
	Label  string  `json:"label" yaml:"label"`
}

type ScatterChart struct {
	Title  string  `json:"title" yaml:"title"`
	XLabel string  `json:"xLabel" yaml:"xLabel"`
	YLabel string  `json:"yLabel" yaml:"yLabel"`
	Points []Point `json:"points" yaml:"points"`
}

// Scatter plots confidence against lift. Bubble radius scales with support
// and colour follows confidence on the viridis map.
func Scatter(rules []models.Rule) ScatterChart {
	chart := ScatterChart{
		Title:  "Lift vs Confidence (Bubble size = Support)",
		XLabel: "Confidence",
		YLabel: "Lift",
		Points: make([]Point, 0, len(rules)),
	}
	if len(rules) == 0 {
		return chart
	}
	sLo, sHi := rules[0].Support, rules[0].Support
	cLo, cHi := rules[0].Confidence, rules[0].Confidence
	for _, r := range rules[1:] {
		sLo, sHi = min(sLo, r.Support), max(sHi, r.Support)
		cLo, cHi = min(cLo, r.Confidence), max(cHi, r.Confidence)
	}
	for _, r := range rules {
		chart.Points = append(chart.Points, Point{
			X:      r.Confidence,
			Y:      r.Lift,
			Size:   r.Support,
			Radius: minRadius + (maxRadius-minRadius)*normalize(r.Support, sLo, sHi),
			Color:  Viridis(normalize(r.Confidence, cLo, cHi)),
			Label:  fmt.Sprintf("%s → %s", r.Antecedents, r.Consequents),
		})
	}
	return chart
}

// normalize maps v from [lo, hi] to [0, 1]; a degenerate range maps to 0.5.
func normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0.5
	}
	return (v - lo) / (hi - lo)
}

type HeatCell struct {
	Value   float64 `json:"value" yaml:"value"`
	Present bool    `json:"present" yaml:"present"`
	Color   string  `json:"color" yaml:"color"`
}

// Pivot is a lift matrix with antecedents as rows and consequents as
// columns. Pairs without a rule hold 0 and Present=false.
type Pivot struct {
	Title  string       `json:"title" yaml:"title"`
	XLabel string       `json:"xLabel" yaml:"xLabel"`
	YLabel string       `json:"yLabel" yaml:"yLabel"`
	Rows   []string     `json:"rows" yaml:"rows"`
	Cols   []string     `json:"cols" yaml:"cols"`
	Cells  [][]HeatCell `json:"cells" yaml:"cells"`
}

// LiftHeatmap pivots the top-n rules by lift into an antecedent × consequent
// matrix, filling absent pairs with 0. Colours span the coolwarm map over the
// range of all cell values, filled zeros included.
func LiftHeatmap(rules []models.Rule, n int) (Pivot, error) {
	top := TopByLift(rules, n)
	if len(top) == 0 {
		return Pivot{}, ErrEmptyPivot
	}
	rowSet := map[string]struct{}{}
	colSet := map[string]struct{}{}
	for _, r := range top {
		rowSet[r.Antecedents.String()] = struct{}{}
		colSet[r.Consequents.String()] = struct{}{}
	}
	p := Pivot{
		Title:  "Lift Values Between Product Associations",
		XLabel: "Consequents (Likely to be Bought)",
		YLabel: "Antecedents (Bought First)",
		Rows:   sortedKeys(rowSet),
		Cols:   sortedKeys(colSet),
	}
	rowIdx := indexOf(p.Rows)
	colIdx := indexOf(p.Cols)

	p.Cells = make([][]HeatCell, len(p.Rows))
	for i := range p.Cells {
		p.Cells[i] = make([]HeatCell, len(p.Cols))
	}
	for _, r := range top {
		c := &p.Cells[rowIdx[r.Antecedents.String()]][colIdx[r.Consequents.String()]]
		if c.Present {
			return Pivot{}, fmt.Errorf("%w: %s → %s", ErrDuplicatePair, r.Antecedents, r.Consequents)
		}
		c.Value = r.Lift
		c.Present = true
	}

	lo, hi := p.Cells[0][0].Value, p.Cells[0][0].Value
	for _, row := range p.Cells {
		for _, c := range row {
			lo, hi = min(lo, c.Value), max(hi, c.Value)
		}
	}
	for i := range p.Cells {
		for j := range p.Cells[i] {
			p.Cells[i][j].Color = Coolwarm(normalize(p.Cells[i][j].Value, lo, hi))
		}
	}
	return p, nil
}

// Sum adds every cell of the pivot. Filled cells contribute 0.
func (p Pivot) Sum() float64 {
	total := 0.0
	for _, row := range p.Cells {
		for _, c := range row {
			total += c.Value
		}
	}
	return total
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func indexOf(keys []string) map[string]int {
	out := make(map[string]int, len(keys))
	for i, k := range keys {
		out[k] = i
	}
	return out
}
