package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/feedex/internal/db"
)

// ZAdd adds or updates scored members.
func (s *Store) ZAdd(ctx context.Context, key string, members ...db.Z) error {
	if len(members) == 0 {
		return nil
	}
	if err := s.do(ctx, s.zaddCmd(key, members)).Error(); err != nil {
		return &db.Error{Op: db.OpZAdd, Err: err}
	}
	return nil
}

func (s *Store) zaddCmd(key string, members []db.Z) rueidis.Completed {
	cmd := s.b().Zadd().Key(key).ScoreMember()
	for _, m := range members {
		cmd = cmd.ScoreMember(m.Score, m.Member)
	}
	return cmd.Build()
}

// ZRem removes members from a sorted set.
func (s *Store) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	cmd := s.b().Zrem().Key(key).Member(members...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpZRem, Err: err}
	}
	return nil
}

// ZRangeByScore returns up to limit members in ascending score order.
func (s *Store) ZRangeByScore(ctx context.Context, key string, limit int) ([]db.Z, error) {
	if limit <= 0 {
		return nil, nil
	}
	cmd := s.b().Zrangebyscore().Key(key).Min("-inf").Max("+inf").
		Withscores().Limit(0, int64(limit)).Build()
	scores, err := s.do(ctx, cmd).AsZScores()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRangeByScore, Err: err}
	}
	return toZ(scores), nil
}

// ZRevRange returns members by rank in descending score order, inclusive bounds.
func (s *Store) ZRevRange(ctx context.Context, key string, start, stop int64) ([]db.Z, error) {
	cmd := s.b().Zrevrange().Key(key).Start(start).Stop(stop).Withscores().Build()
	scores, err := s.do(ctx, cmd).AsZScores()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRevRange, Err: err}
	}
	return toZ(scores), nil
}

// ZCard returns the number of members in a sorted set.
func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Zcard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpZCard, Err: err}
	}
	return n, nil
}

// ZReplace swaps the sorted set content inside MULTI/EXEC.
func (s *Store) ZReplace(ctx context.Context, key string, members []db.Z) error {
	cmds := []rueidis.Completed{s.b().Del().Key(key).Build()}
	if len(members) > 0 {
		cmds = append(cmds, s.zaddCmd(key, members))
	}
	return s.tx(ctx, cmds...)
}

func toZ(scores []rueidis.ZScore) []db.Z {
	out := make([]db.Z, len(scores))
	for i, z := range scores {
		out[i] = db.Z{Member: z.Member, Score: z.Score}
	}
	return out
}
