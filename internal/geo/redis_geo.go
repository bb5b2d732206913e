package geo

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/hotel-car-service/internal/models"
)

// RedisGeo implements Geo using Redis GEO commands.
type RedisGeo struct {
	client   *redis.Client
	key      string
	radiusKm float64
}

func NewRedisGeo(addr, password, key string, radiusKm float64) *RedisGeo {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisGeo{client: c, key: key, radiusKm: radiusKm}
}

func (r *RedisGeo) Upsert(ctx context.Context, username string, pos models.Coord) error {
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: pos.Lng, Latitude: pos.Lat, Name: username}).Err(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(username), map[string]interface{}{"updated": time.Now().Format(time.RFC3339)}).Err()
}

func (r *RedisGeo) Remove(ctx context.Context, username string) error {
	if err := r.client.ZRem(ctx, r.key, username).Err(); err != nil {
		return err
	}
	return r.client.Del(ctx, metaKey(username)).Err()
}

func (r *RedisGeo) Nearby(ctx context.Context, pos models.Coord, limit int) ([]Nearby, error) {
	res, err := r.client.GeoSearchLocation(ctx, r.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  pos.Lng,
			Latitude:   pos.Lat,
			Radius:     r.radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Nearby, 0, len(res))
	for _, g := range res {
		out = append(out, Nearby{
			Username: g.Name,
			Position: models.Coord{Lat: g.Latitude, Lng: g.Longitude},
			Meters:   g.Dist * 1000,
		})
	}
	return out, nil
}

func (r *RedisGeo) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisGeo) Close() error { return r.client.Close() }

func metaKey(username string) string { return "driver:meta:" + username }
