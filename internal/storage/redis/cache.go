// Package redis caches report results in Redis.
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/bistro/internal/domain/report"
)

const keyPrefix = "bistro:reports:top-dishes:"

var _ report.Cache = (*ReportCache)(nil)

// ReportCache stores TopDishes results with a fixed TTL.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache returns a ReportCache on top of client.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// NewClient parses a redis:// URL and returns a connected client.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

func topDishesKey(n int) string {
	return keyPrefix + strconv.Itoa(n)
}

func (c *ReportCache) GetTopDishes(ctx context.Context, n int) ([]report.TopDish, bool, error) {
	raw, err := c.client.Get(ctx, topDishesKey(n)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "get top dishes")
	}
	dishes, err := decodeTopDishes(raw)
	if err != nil {
		return nil, false, errors.Wrap(err, "decode top dishes")
	}
	return dishes, true, nil
}

func (c *ReportCache) SetTopDishes(ctx context.Context, n int, dishes []report.TopDish) error {
	if err := c.client.Set(ctx, topDishesKey(n), encodeTopDishes(dishes), c.ttl).Err(); err != nil {
		return errors.Wrap(err, "set top dishes")
	}
	return nil
}

func encodeTopDishes(dishes []report.TopDish) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ArrStart()
	for _, d := range dishes {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(d.DishID)
		e.FieldStart("name")
		e.Str(d.Name)
		e.FieldStart("count")
		e.Int64(d.OrderCount)
		e.ObjEnd()
	}
	e.ArrEnd()
	return append([]byte(nil), e.Bytes()...)
}

func decodeTopDishes(raw []byte) ([]report.TopDish, error) {
	var dishes []report.TopDish
	err := jx.DecodeBytes(raw).Arr(func(d *jx.Decoder) error {
		var t report.TopDish
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				t.DishID, err = d.Str()
			case "name":
				t.Name, err = d.Str()
			case "count":
				t.OrderCount, err = d.Int64()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		dishes = append(dishes, t)
		return nil
	})
	return dishes, err
}
