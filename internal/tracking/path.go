package tracking

import "github.com/example/hotel-car-service/internal/models"

// Path maps trip progress onto a map position. The linear path is a stand-in
// for a real position feed.
type Path interface {
	At(progress float64) models.Point
}

// LinePath moves in a straight line between two fixed points.
type LinePath struct {
	From, To models.Point
}

// DefaultPath runs from the hotel pickup to the drop-off marker.
var DefaultPath = LinePath{
	From: models.Point{X: 10, Y: 80},
	To:   models.Point{X: 85, Y: 20},
}

func (l LinePath) At(progress float64) models.Point {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return models.Point{
		X: l.From.X + (l.To.X-l.From.X)*progress,
		Y: l.From.Y + (l.To.Y-l.From.Y)*progress,
	}
}
