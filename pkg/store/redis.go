package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/trustrail/trustrail/pkg/command"
	"github.com/trustrail/trustrail/pkg/protocol"
)

// releaseLockScript deletes a lock key only when the caller still owns
// it, so a lock that expired and was re-acquired is never released by
// the previous holder.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore implements the CommandStore contract on Redis, with SET NX
// advisory locks keyed per reference id. Swapping it in place of the
// in-memory store extends the per-conversation mutual exclusion across
// processes.
type RedisStore struct {
	client   *redis.Client
	lockTTL  time.Duration
	onAccept OnAccept
}

// NewRedisStore builds a store around an existing client. lockTTL bounds
// how long a crashed holder can keep a conversation locked.
func NewRedisStore(client *redis.Client, lockTTL time.Duration, onAccept OnAccept) *RedisStore {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &RedisStore{client: client, lockTTL: lockTTL, onAccept: onAccept}
}

func commandKey(refID string) string { return "offchain:command:" + refID }
func lockKey(refID string) string    { return "offchain:lock:" + refID }

func (s *RedisStore) Save(ctx context.Context, cmd command.Command) error {
	refID := cmd.ReferenceID()
	token := uuid.NewString()

	acquired, err := s.client.SetNX(ctx, lockKey(refID), token, s.lockTTL).Result()
	if err != nil {
		return fmt.Errorf("acquire lock for %s: %w", refID, err)
	}
	if !acquired {
		return protocol.NewCommandError(protocol.ErrorCodeConflict, refID,
			"command is locked by a concurrent update")
	}
	defer func() {
		_ = releaseLockScript.Run(context.WithoutCancel(ctx), s.client, []string{lockKey(refID)}, token).Err()
	}()

	prior, hasPrior, err := s.Get(ctx, refID)
	if err != nil {
		return err
	}
	if hasPrior {
		same, err := command.Equal(cmd, prior)
		if err != nil {
			return err
		}
		if same {
			return nil
		}
	}
	if err := cmd.Validate(prior); err != nil {
		return err
	}

	data, err := command.Marshal(cmd)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, commandKey(refID), data, 0).Err(); err != nil {
		return fmt.Errorf("store command %s: %w", refID, err)
	}

	if s.onAccept != nil {
		s.onAccept(cmd)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, referenceID string) (command.Command, bool, error) {
	data, err := s.client.Get(ctx, commandKey(referenceID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load command %s: %w", referenceID, err)
	}
	cmd, err := command.Unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	return cmd, true, nil
}
