package eta

import (
	"fmt"
	"math"
	"time"
)

// DisplayMinutes is the real-world trip length the simulated trip stands for.
const DisplayMinutes = 15

// Progress maps elapsed time onto [0,1] for a trip lasting total.
func Progress(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	p := float64(elapsed) / float64(total)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Describe renders the guest-facing ETA for a trip progress value.
func Describe(progress float64) string {
	switch {
	case progress >= 1:
		return "Arrived"
	case progress > 0.95:
		return "Arriving now"
	}
	n := int(math.Round(DisplayMinutes * (1 - progress)))
	if n <= 1 {
		return "Less than a minute"
	}
	return fmt.Sprintf("approx. %d mins", n)
}

// TravelSeconds is a straight-line travel estimate at a constant speed.
func TravelSeconds(meters, speedMps float64) float64 {
	if speedMps <= 0 {
		return 0
	}
	return meters / speedMps
}
