package scoring

import "math"

// point is one breakpoint of a piecewise-linear curve.
type point struct{ x, y float64 }

// curve is a piecewise-linear function defined by breakpoints sorted by x.
// Inputs outside the table clamp to the end values.
type curve []point

func (c curve) at(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	if x <= c[0].x {
		return c[0].y
	}
	last := c[len(c)-1]
	if x >= last.x {
		return last.y
	}
	for i := 1; i < len(c); i++ {
		if x <= c[i].x {
			a, b := c[i-1], c[i]
			return a.y + (x-a.x)*(b.y-a.y)/(b.x-a.x)
		}
	}
	return last.y
}

var (
	qualityCurve = curve{{0, -1.0}, {40, -0.2}, {60, 0.3}, {75, 0.8}, {100, 1.0}}

	sentimentCurve = curve{{0, -1.0}, {30, -0.6}, {50, 0.0}, {70, 0.6}, {100, 1.0}}

	// Percentage change in social mentions.
	socialGrowthCurve = curve{{-100, -1.0}, {-20, -0.2}, {20, 0.2}, {100, 0.8}, {200, 1.0}}

	// 24h price change, percent.
	momentumCurve = curve{{-30, -1.0}, {-10, -0.6}, {-2, -0.1}, {2, 0.1}, {10, 0.6}, {30, 1.0}}

	// Rank 1 is best; the curve is decreasing in x.
	rankCurve = curve{{1, 1.0}, {10, 0.8}, {50, 0.2}, {200, -0.4}, {1000, -1.0}}
)
