package charts

import (
	"fmt"
	"math"
)

type rgb struct{ r, g, b float64 }

// Anchor colours sampled from matplotlib's viridis and coolwarm maps.
var (
	viridisStops = []rgb{
		{68, 1, 84},
		{59, 82, 139},
		{33, 145, 140},
		{94, 201, 98},
		{253, 231, 37},
	}
	coolwarmStops = []rgb{
		{59, 76, 192},
		{221, 221, 221},
		{180, 4, 38},
	}
)

// Viridis maps t in [0, 1] to a hex colour.
func Viridis(t float64) string { return interpolate(viridisStops, t) }

// Coolwarm maps t in [0, 1] to a hex colour.
func Coolwarm(t float64) string { return interpolate(coolwarmStops, t) }

func interpolate(stops []rgb, t float64) string {
	if math.IsNaN(t) {
		t = 0
	}
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(stops)-1)
	i := int(math.Floor(pos))
	if i >= len(stops)-1 {
		i = len(stops) - 2
	}
	f := pos - float64(i)
	a, b := stops[i], stops[i+1]
	return fmt.Sprintf("#%02x%02x%02x",
		uint8(math.Round(a.r+(b.r-a.r)*f)),
		uint8(math.Round(a.g+(b.g-a.g)*f)),
		uint8(math.Round(a.b+(b.b-a.b)*f)),
	)
}
