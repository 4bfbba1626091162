package ui

import "math"

// AnimState drives the fade-in of a newly shown line.
type AnimState struct {
	Reveal float64
	Glow   float64
}

func (a *AnimState) Reset() {
	a.Reveal = 0
	a.Glow = 1
}

func (a *AnimState) Update(transitionTicks int) {
	if transitionTicks <= 0 {
		transitionTicks = 6
	}

	if a.Reveal < 1 {
		a.Reveal = math.Min(1, a.Reveal+1/float64(transitionTicks))
	}

	if a.Glow > 0 {
		a.Glow *= 0.8
		if a.Glow < 0.01 {
			a.Glow = 0
		}
	}
}

// Progress is the eased reveal in [0, 1].
func (a *AnimState) Progress() float64 {
	return easeOutCubic(a.Reveal)
}

func (a *AnimState) Done() bool {
	return a.Reveal >= 1 && a.Glow == 0
}

func easeOutCubic(t float64) float64 {
	if t >= 1 {
		return 1
	}
	if t <= 0 {
		return 0
	}
	return 1 - math.Pow(1-t, 3)
}
