package community

import (
	"fmt"

	"github.com/go-redis/redis"
)

// RedisLedger persists per-actor vote sets, so "have I voted" survives app
// restarts and is shared across devices signed into the same account. Each
// actor gets one liked and one disliked set per scope.
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(addr string) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping().Err(); err != nil {
		return nil, fmt.Errorf("community: redis ping: %w", err)
	}
	return &RedisLedger{client: client}, nil
}

func redisKey(actorID string, scope Scope, direction string) string {
	return fmt.Sprintf("votes:%s:%s:%s", actorID, scope, direction)
}

func (l *RedisLedger) Get(actorID string, scope Scope, id string) (bool, bool, error) {
	liked, err := l.client.SIsMember(redisKey(actorID, scope, "liked"), id).Result()
	if err != nil {
		return false, false, err
	}
	disliked, err := l.client.SIsMember(redisKey(actorID, scope, "disliked"), id).Result()
	if err != nil {
		return false, false, err
	}
	return liked, disliked, nil
}

func (l *RedisLedger) Set(actorID string, scope Scope, id string, liked, disliked bool) error {
	if err := l.setMembership(redisKey(actorID, scope, "liked"), id, liked); err != nil {
		return err
	}
	return l.setMembership(redisKey(actorID, scope, "disliked"), id, disliked)
}

func (l *RedisLedger) setMembership(key, id string, on bool) error {
	if on {
		return l.client.SAdd(key, id).Err()
	}
	return l.client.SRem(key, id).Err()
}
