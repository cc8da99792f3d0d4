package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisSink writes counters into redis hashes:
//
//	<prefix>:total                 admitted, rejected, weight
//	<prefix>:venue:<venue>         same fields for one venue
//	<prefix>:minute:<yyyymmddhhmm> per-minute bucket, expires after ttl
//	<prefix>:endpoint:<venue>      <endpoint>:<kind> counts
type RedisSink struct {
	rdb redis.Cmdable

	prefix        string
	ttl           time.Duration
	minuteBuckets bool
}

// RedisOption configures a RedisSink.
type RedisOption func(*RedisSink)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisSink) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

// WithTTL sets the expiry of per-minute buckets. Totals never expire.
func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisSink) { s.ttl = d }
}

// WithMinuteBuckets switches the per-minute series on or off.
func WithMinuteBuckets(enabled bool) RedisOption {
	return func(s *RedisSink) { s.minuteBuckets = enabled }
}

// NewRedisSink creates a RedisSink over rdb.
func NewRedisSink(rdb redis.Cmdable, opts ...RedisOption) *RedisSink {
	s := &RedisSink{
		rdb:           rdb,
		prefix:        "venuekit:stats",
		ttl:           24 * time.Hour,
		minuteBuckets: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implements Sink with a single pipeline round trip.
func (s *RedisSink) Record(ctx context.Context, ev Event) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := string(ev.Kind)

	pipe := s.rdb.Pipeline()
	for _, key := range []string{s.prefix + ":total", s.prefix + ":venue:" + ev.Venue} {
		pipe.HIncrBy(ctx, key, field, 1)
		if ev.Kind == KindAdmitted {
			pipe.HIncrByFloat(ctx, key, "weight", ev.Cost)
		}
	}

	if s.minuteBuckets {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, ev.Venue+":"+field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if ev.Endpoint != "" {
		pipe.HIncrBy(ctx, s.prefix+":endpoint:"+ev.Venue, ev.Endpoint+":"+field, 1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "record stats in redis")
	}
	return nil
}

// Venue reads back the totals of one venue.
func (s *RedisSink) Venue(ctx context.Context, venue string) (Counters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.prefix+":venue:"+venue).Result()
	if err != nil {
		return Counters{}, errors.Wrapf(err, "read %s stats from redis", venue)
	}

	var c Counters
	if _, err := fmt.Sscan(valueOr(vals, string(KindAdmitted)), &c.Admitted); err != nil {
		return Counters{}, errors.Wrap(err, "parse admitted")
	}
	if _, err := fmt.Sscan(valueOr(vals, string(KindRejected)), &c.Rejected); err != nil {
		return Counters{}, errors.Wrap(err, "parse rejected")
	}
	if _, err := fmt.Sscan(valueOr(vals, "weight"), &c.Weight); err != nil {
		return Counters{}, errors.Wrap(err, "parse weight")
	}
	return c, nil
}

func valueOr(vals map[string]string, field string) string {
	if v, ok := vals[field]; ok && v != "" {
		return v
	}
	return "0"
}
