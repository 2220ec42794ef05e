package leader

import (
	"context"
	"errors"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const leaderKey = "auction_closer_leader"

const releaseScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("DEL", KEYS[1])
        else
            return 0
        end
    `

const refreshScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("PEXPIRE", KEYS[1], ARGV[2])
        else
            return 0
        end
    `

// RedisLeaderElection elects one instance to run the closer sweep using a
// Redis key with a TTL. The holder refreshes the TTL; if it dies the key
// expires and another instance takes over.
type RedisLeaderElection struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

func NewRedisLeaderElection(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisLeaderElection {
	return &RedisLeaderElection{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// BecomeLeader takes the lock if it is free or already ours, refreshing the
// TTL in the latter case.
func (r *RedisLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	acquired, err := r.client.SetNX(ctx, leaderKey, instanceID, r.ttl).Result()
	if err != nil {
		return false, err
	}
	if acquired {
		return true, nil
	}
	return r.refresh(ctx, instanceID)
}

func (r *RedisLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	currentLeader, err := r.client.Get(ctx, leaderKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	return currentLeader == instanceID, nil
}

func (r *RedisLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	_, err := r.client.Eval(ctx, releaseScript, []string{leaderKey}, instanceID).Result()
	return err
}

func (r *RedisLeaderElection) refresh(ctx context.Context, instanceID string) (bool, error) {
	result, err := r.client.Eval(ctx, refreshScript, []string{leaderKey},
		instanceID, r.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// Campaign keeps trying to hold leadership until ctx is done, then releases
// it. It refreshes at a third of the TTL.
func (r *RedisLeaderElection) Campaign(ctx context.Context, instanceID string) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	wasLeader := false
	for {
		isLeader, err := r.BecomeLeader(ctx, instanceID)
		if err != nil && ctx.Err() == nil {
			r.log.Error("Leader election failed", "instance_id", instanceID, "error", err)
		}
		if isLeader != wasLeader {
			r.log.Info("Leadership changed", "instance_id", instanceID, "leader", isLeader)
			wasLeader = isLeader
		}

		select {
		case <-ctx.Done():
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := r.ReleaseLeadership(releaseCtx, instanceID); err != nil {
				r.log.Warn("Failed to release leadership", "instance_id", instanceID, "error", err)
			}
			cancel()
			return
		case <-ticker.C:
		}
	}
}

var _ domain.LeaderElection = (*RedisLeaderElection)(nil)
