package geo

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/example/hotel-car-service/internal/models"
)

// Geo indexes the positions of online drivers.
type Geo interface {
	Upsert(ctx context.Context, username string, pos models.Coord) error
	Remove(ctx context.Context, username string) error
	Nearby(ctx context.Context, pos models.Coord, limit int) ([]Nearby, error)
}

// Nearby is one driver in a proximity search.
type Nearby struct {
	Username string       `json:"username"`
	Position models.Coord `json:"position"`
	Meters   float64      `json:"meters"`
}

// DefaultRadiusKm bounds proximity searches when no radius is configured.
const DefaultRadiusKm = 50.0

type Index struct {
	mu       sync.RWMutex
	drivers  map[string]models.Coord
	radiusKm float64
}

func NewIndex() *Index { return NewIndexWithin(DefaultRadiusKm) }

// NewIndexWithin returns an index whose searches ignore drivers further than
// radiusKm away. A non-positive radius falls back to DefaultRadiusKm.
func NewIndexWithin(radiusKm float64) *Index {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	return &Index{drivers: make(map[string]models.Coord), radiusKm: radiusKm}
}

func (g *Index) Upsert(ctx context.Context, username string, pos models.Coord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drivers[username] = pos
	return nil
}

func (g *Index) Remove(ctx context.Context, username string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.drivers, username)
	return nil
}

// naive scan; the fleet is a handful of hotel drivers
func (g *Index) Nearby(ctx context.Context, pos models.Coord, limit int) ([]Nearby, error) {
	maxMeters := g.radiusKm * 1000
	g.mu.RLock()
	out := make([]Nearby, 0, len(g.drivers))
	for u, c := range g.drivers {
		m := Haversine(pos.Lat, pos.Lng, c.Lat, c.Lng)
		if m > maxMeters {
			continue
		}
		out = append(out, Nearby{Username: u, Position: c, Meters: m})
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Meters == out[j].Meters {
			return out[i].Username < out[j].Username
		}
		return out[i].Meters < out[j].Meters
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
