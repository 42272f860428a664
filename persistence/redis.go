// persistence/redis.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wfunc/spyserver/models"
)

const (
	redisIDsKey = "wordpairs:ids"
)

func redisPairKey(id string) string { return "wordpair:" + id }

// 词组唯一性索引, 值为词组ID
func redisWordsKey(wordA, wordB string) string { return "wordpair:words:" + wordA + "\x00" + wordB }

// RedisStore keeps each pair as JSON under wordpair:{id} and the id set under wordpairs:ids.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects and pings the server.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, err
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) FindMany(ctx context.Context, opts models.FindOptions) ([]models.WordPair, error) {
	ids, err := s.rdb.SMembers(ctx, redisIDsKey).Result()
	if err != nil {
		return nil, err
	}
	exclude := excludeSet(opts.ExcludeIDs)
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if !exclude[id] {
			keys = append(keys, redisPairKey(id))
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.WordPair, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var p models.WordPair
		if err := json.Unmarshal([]byte(str), &p); err != nil {
			return nil, err
		}
		if opts.EnabledOnly && !p.Enabled {
			continue
		}
		out = append(out, p)
	}
	sortPairs(out)
	return out, nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (models.WordPair, error) {
	data, err := s.rdb.Get(ctx, redisPairKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return models.WordPair{}, ErrRecordNotFound
	}
	if err != nil {
		return models.WordPair{}, err
	}
	var p models.WordPair
	err = json.Unmarshal([]byte(data), &p)
	return p, err
}

func (s *RedisStore) FindByWords(ctx context.Context, wordA, wordB string) (models.WordPair, error) {
	id, err := s.rdb.Get(ctx, redisWordsKey(wordA, wordB)).Result()
	if errors.Is(err, redis.Nil) {
		return models.WordPair{}, ErrRecordNotFound
	}
	if err != nil {
		return models.WordPair{}, err
	}
	return s.FindByID(ctx, id)
}

func (s *RedisStore) Create(ctx context.Context, input models.WordPairInput) (models.WordPair, error) {
	p := models.WordPair{
		ID:        uuid.NewString(),
		WordA:     input.WordA,
		WordB:     input.WordB,
		Enabled:   true,
		CreatedAt: time.Now(),
	}
	ok, err := s.rdb.SetNX(ctx, redisWordsKey(p.WordA, p.WordB), p.ID, 0).Result()
	if err != nil {
		return models.WordPair{}, err
	}
	if !ok {
		return models.WordPair{}, ErrDuplicate
	}
	if err := s.save(ctx, p); err != nil {
		s.rdb.Del(ctx, redisWordsKey(p.WordA, p.WordB))
		return models.WordPair{}, err
	}
	return p, nil
}

func (s *RedisStore) save(ctx context.Context, p models.WordPair) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisPairKey(p.ID), data, 0)
		pipe.SAdd(ctx, redisIDsKey, p.ID)
		return nil
	})
	return err
}

// CreateMany stops at the first failure and removes what it already created.
func (s *RedisStore) CreateMany(ctx context.Context, inputs []models.WordPairInput) ([]models.WordPair, error) {
	out := make([]models.WordPair, 0, len(inputs))
	for _, input := range inputs {
		p, err := s.Create(ctx, input)
		if err != nil {
			for _, c := range out {
				s.Delete(ctx, c.ID)
			}
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, update models.WordPairUpdate) (models.WordPair, error) {
	p, err := s.FindByID(ctx, id)
	if err != nil {
		return models.WordPair{}, err
	}
	next := applyUpdate(p, update)
	if next.WordA != p.WordA || next.WordB != p.WordB {
		ok, err := s.rdb.SetNX(ctx, redisWordsKey(next.WordA, next.WordB), id, 0).Result()
		if err != nil {
			return models.WordPair{}, err
		}
		if !ok {
			return models.WordPair{}, ErrDuplicate
		}
		s.rdb.Del(ctx, redisWordsKey(p.WordA, p.WordB))
	}
	if err := s.save(ctx, next); err != nil {
		return models.WordPair{}, err
	}
	return next, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	p, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisPairKey(id), redisWordsKey(p.WordA, p.WordB))
		pipe.SRem(ctx, redisIDsKey, id)
		return nil
	})
	return err
}

func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	return s.rdb.SCard(ctx, redisIDsKey).Result()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
