package render

import (
	"math"
	"math/rand"
)

// Position is a 2D canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LayoutConfig configures layout parameters.
type LayoutConfig struct {
	Width      float64 // Canvas width
	Height     float64 // Canvas height
	Iterations int     // Number of iterations
	Padding    float64 // Padding from edges
	Seed       int64   // RNG seed for initial placement
}

// DefaultLayoutConfig returns the default canvas configuration.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		Width:      1200,
		Height:     800,
		Iterations: 50,
		Padding:    50,
		Seed:       1,
	}
}

// computeForceLayout positions vertices with a force-directed algorithm:
// repulsion between all pairs, attraction along edges, cooling temperature.
// Vertices and adjacency are given abstractly so the same layout serves the
// node view and the group view.
func computeForceLayout(cfg LayoutConfig, keys []string, adjacent func(a, b string) bool) map[string]Position {
	positions := make(map[string]Position, len(keys))
	if len(keys) == 0 {
		return positions
	}
	if len(keys) == 1 {
		positions[keys[0]] = Position{X: cfg.Width / 2, Y: cfg.Height / 2}
		return positions
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	for _, k := range keys {
		positions[k] = Position{
			X: rng.Float64()*(cfg.Width-2*cfg.Padding) + cfg.Padding,
			Y: rng.Float64()*(cfg.Height-2*cfg.Padding) + cfg.Padding,
		}
	}

	k := math.Sqrt((cfg.Width * cfg.Height) / float64(len(keys))) // Optimal distance
	temperature := cfg.Width / 10.0

	for iter := 0; iter < cfg.Iterations; iter++ {
		forces := make(map[string]Position, len(keys))

		// Repulsion between all pairs
		for i, a := range keys {
			for j, b := range keys {
				if i == j {
					continue
				}
				dx := positions[a].X - positions[b].X
				dy := positions[a].Y - positions[b].Y
				dist := math.Hypot(dx, dy)
				if dist < 0.01 {
					dist = 0.01
				}
				repulse := (k * k) / dist
				f := forces[a]
				f.X += (dx / dist) * repulse
				f.Y += (dy / dist) * repulse
				forces[a] = f
			}
		}

		// Attraction along edges
		for i, a := range keys {
			for _, b := range keys[i+1:] {
				if !adjacent(a, b) {
					continue
				}
				dx := positions[a].X - positions[b].X
				dy := positions[a].Y - positions[b].Y
				dist := math.Hypot(dx, dy)
				if dist < 0.01 {
					dist = 0.01
				}
				attract := (dist * dist) / k
				fa, fb := forces[a], forces[b]
				fa.X -= (dx / dist) * attract
				fa.Y -= (dy / dist) * attract
				fb.X += (dx / dist) * attract
				fb.Y += (dy / dist) * attract
				forces[a] = fa
				forces[b] = fb
			}
		}

		// Apply forces within the cooling temperature
		for _, a := range keys {
			f := forces[a]
			mag := math.Hypot(f.X, f.Y)
			if mag < 0.01 {
				continue
			}
			limited := math.Min(mag, temperature)
			p := positions[a]
			p.X += (f.X / mag) * limited
			p.Y += (f.Y / mag) * limited
			p.X = math.Max(cfg.Padding, math.Min(cfg.Width-cfg.Padding, p.X))
			p.Y = math.Max(cfg.Padding, math.Min(cfg.Height-cfg.Padding, p.Y))
			positions[a] = p
		}

		temperature *= 0.95
	}
	return positions
}
