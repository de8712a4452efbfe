package charts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basket-dashboard/internal/models"
)

func rule(ante, cons string, lift, conf, support float64) models.Rule {
	return models.Rule{
		Antecedents: models.NewItemset(ante),
		Consequents: models.NewItemset(cons),
		Lift:        lift,
		Confidence:  conf,
		Support:     support,
	}
}

func TestTopByLift(t *testing.T) {
	rules := []models.Rule{
		rule("a", "b", 1.5, 0.5, 0.1),
		rule("c", "d", 3.0, 0.5, 0.1),
		rule("e", "f", 1.5, 0.5, 0.1),
		rule("g", "h", 2.0, 0.5, 0.1),
	}
	top := TopByLift(rules, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "{c}", top[0].Antecedents.String())
	assert.Equal(t, "{g}", top[1].Antecedents.String())
	// Ties keep input order.
	assert.Equal(t, "{a}", top[2].Antecedents.String())

	assert.Len(t, TopByLift(rules, 10), 4)
	assert.Equal(t, "{a}", rules[0].Antecedents.String(), "input is not reordered")
}

func TestLiftBar(t *testing.T) {
	rules := []models.Rule{
		rule("milk", "bread", 2.0, 0.5, 0.1),
		rule("eggs", "bread", 1.5, 0.5, 0.1),
		rule("milk", "eggs", 3.0, 0.5, 0.1),
	}
	chart := LiftBar(rules)

	assert.Equal(t, "Top 10 Association Rules by Lift", chart.Title)
	assert.Equal(t, "Lift", chart.XLabel)
	assert.Equal(t, "Antecedents", chart.YLabel)
	assert.Equal(t, []Bar{
		{Label: "{milk}", Value: 2.5},
		{Label: "{eggs}", Value: 1.5},
	}, chart.Bars)

	assert.NotNil(t, LiftBar(nil).Bars)
}

func TestLiftBar_TopTen(t *testing.T) {
	var rules []models.Rule
	for i := range 15 {
		rules = append(rules, rule(string(rune('a'+i)), "z", float64(i), 0.5, 0.1))
	}
	chart := LiftBar(rules)
	require.Len(t, chart.Bars, TopBarRules)
	assert.Equal(t, "{o}", chart.Bars[0].Label)
	assert.Equal(t, 14.0, chart.Bars[0].Value)
}

func TestScatter(t *testing.T) {
	rules := []models.Rule{
		rule("milk", "bread", 2.0, 0.4, 0.1),
		rule("eggs", "bread", 1.5, 1.0, 0.3),
	}
	chart := Scatter(rules)
	require.Len(t, chart.Points, 2)

	p := chart.Points[0]
	assert.Equal(t, 0.4, p.X)
	assert.Equal(t, 2.0, p.Y)
	assert.Equal(t, 0.1, p.Size)
	assert.Equal(t, minRadius, p.Radius)
	assert.Equal(t, "#440154", p.Color)
	assert.Equal(t, "{milk} → {bread}", p.Label)

	assert.Equal(t, maxRadius, chart.Points[1].Radius)
	assert.Equal(t, "#fde725", chart.Points[1].Color)

	single := Scatter(rules[:1])
	assert.Equal(t, minRadius+(maxRadius-minRadius)/2, single.Points[0].Radius)

	assert.Empty(t, Scatter(nil).Points)
}

func TestLiftHeatmap(t *testing.T) {
	rules := []models.Rule{
		rule("milk", "bread", 2.0, 0.5, 0.1),
		rule("bread", "milk", 2.0, 0.5, 0.1),
		rule("eggs", "bread", 4.0, 0.5, 0.1),
	}
	p, err := LiftHeatmap(rules, TopHeatmapRules)
	require.NoError(t, err)

	assert.Equal(t, []string{"{bread}", "{eggs}", "{milk}"}, p.Rows)
	assert.Equal(t, []string{"{bread}", "{milk}"}, p.Cols)
	require.Len(t, p.Cells, 3)

	assert.False(t, p.Cells[0][0].Present)
	assert.Zero(t, p.Cells[0][0].Value)
	assert.Equal(t, "#3b4cc0", p.Cells[0][0].Color)

	assert.True(t, p.Cells[0][1].Present)
	assert.Equal(t, 2.0, p.Cells[0][1].Value)
	assert.Equal(t, "#dddddd", p.Cells[0][1].Color)

	assert.Equal(t, 4.0, p.Cells[1][0].Value)
	assert.Equal(t, "#b40426", p.Cells[1][0].Color)

	assert.Equal(t, 8.0, p.Sum())
}

func TestLiftHeatmap_Errors(t *testing.T) {
	_, err := LiftHeatmap(nil, TopHeatmapRules)
	assert.ErrorIs(t, err, ErrEmptyPivot)

	dup := []models.Rule{
		rule("milk", "bread", 2.0, 0.5, 0.1),
		rule("milk", "bread", 1.5, 0.5, 0.1),
	}
	_, err = LiftHeatmap(dup, TopHeatmapRules)
	assert.ErrorIs(t, err, ErrDuplicatePair)
	assert.ErrorContains(t, err, "{milk} → {bread}")
}

func TestColormaps(t *testing.T) {
	assert.Equal(t, "#440154", Viridis(0))
	assert.Equal(t, "#fde725", Viridis(1))
	assert.Equal(t, "#21918c", Viridis(0.5))
	assert.Equal(t, "#3b4cc0", Coolwarm(0))
	assert.Equal(t, "#dddddd", Coolwarm(0.5))
	assert.Equal(t, "#b40426", Coolwarm(1))

	// Out-of-range input clamps to the ends.
	assert.Equal(t, Viridis(0), Viridis(-3))
	assert.Equal(t, Coolwarm(1), Coolwarm(7))
}
