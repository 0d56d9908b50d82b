package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const roomsKey = "rooms"

type repo struct {
	rc               *redis.Client
	logger           *slog.Logger
	maxScoreScript   string
	createRoomScript string
	addMessageScript string
}

func NewRepo(ctx context.Context, rc *redis.Client, logger *slog.Logger) (*repo, error) {
	r := &repo{
		rc:     rc,
		logger: logger,
	}

	scripts := []struct {
		sha *string
		src string
	}{
		{&r.maxScoreScript, `
			local maxScore = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
			local nextScore = 1
			if #maxScore > 0 then
				nextScore = tonumber(maxScore[2]) + 1
			end
			redis.call('ZADD', KEYS[1], nextScore, ARGV[1])
			return nextScore
		`},
		{&r.createRoomScript, `
			if redis.call('EXISTS', KEYS[1]) == 1 then
				return 0
			end
			redis.call('HSET', KEYS[1], unpack(ARGV, 2))
			redis.call('SADD', KEYS[2], ARGV[1])
			return 1
		`},
		{&r.addMessageScript, `
			if redis.call('EXISTS', KEYS[2]) == 1 then
				return 0
			end
			local maxScore = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
			local nextScore = 1
			if #maxScore > 0 then
				nextScore = tonumber(maxScore[2]) + 1
			end
			redis.call('HSET', KEYS[2], unpack(ARGV, 4))
			redis.call('ZADD', KEYS[1], nextScore, ARGV[1])
			local limit = tonumber(ARGV[2])
			if limit > 0 then
				local excess = redis.call('ZCARD', KEYS[1]) - limit
				if excess > 0 then
					local old = redis.call('ZRANGE', KEYS[1], 0, excess - 1)
					for _, id in ipairs(old) do
						redis.call('DEL', ARGV[3] .. id)
					end
					redis.call('ZREMRANGEBYRANK', KEYS[1], 0, excess - 1)
				end
			end
			return 1
		`},
	}

	for _, s := range scripts {
		sha, err := rc.ScriptLoad(ctx, s.src).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to load script: %w", err)
		}
		*s.sha = sha
	}

	return r, nil
}
