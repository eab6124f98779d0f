package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisScheduler stores the due index in a sorted set scored by unix milliseconds.
type RedisScheduler struct {
	Client *redis.Client
	Key    string
}

var _ Scheduler = (*RedisScheduler)(nil)

func NewRedisScheduler(ctx context.Context, addr, password string, db int) (*RedisScheduler, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisScheduler{Client: client, Key: DefaultKey}, nil
}

func (s *RedisScheduler) Schedule(ctx context.Context, postID string, at time.Time) error {
	err := s.Client.ZAdd(ctx, s.Key, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: postID,
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule post %s: %w", postID, err)
	}
	return nil
}

func (s *RedisScheduler) Cancel(ctx context.Context, postID string) error {
	if err := s.Client.ZRem(ctx, s.Key, postID).Err(); err != nil {
		return fmt.Errorf("cancel post %s: %w", postID, err)
	}
	return nil
}

// Due reads the ready range and claims each member with ZREM, so concurrent
// pollers never both receive the same id.
func (s *RedisScheduler) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	members, err := s.Client.ZRangeByScore(ctx, s.Key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read due posts: %w", err)
	}

	claimed := make([]string, 0, len(members))
	for _, id := range members {
		n, err := s.Client.ZRem(ctx, s.Key, id).Result()
		if err != nil {
			return claimed, fmt.Errorf("claim post %s: %w", id, err)
		}
		if n == 1 {
			claimed = append(claimed, id)
		}
	}
	return claimed, nil
}

func (s *RedisScheduler) Close() error {
	return s.Client.Close()
}
