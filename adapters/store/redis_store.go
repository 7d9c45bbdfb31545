package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/delinked/delinked/core"
	"github.com/delinked/delinked/ports"
)

const redisPrefix = "delinked:"

// consumeNonceScript compares the stored nonce with the presented one and
// rotates it in a single atomic step. Returns 1 on success, 0 on mismatch,
// -1 when the user does not exist.
var consumeNonceScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
if redis.call("HGET", KEYS[1], "nonce") ~= ARGV[1] then
	return 0
end
redis.call("HSET", KEYS[1], "nonce", ARGV[2], "updated_at", ARGV[3])
return 1
`)

// createUserScript writes the user hash, the id index and the empty profile
// only when the address key is free. Returns 0 when the address is taken.
var createUserScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1],
	"id", ARGV[1], "address", ARGV[2], "nonce", ARGV[3], "role", ARGV[4],
	"created_at", ARGV[5], "updated_at", ARGV[5])
redis.call("SET", KEYS[2], ARGV[2])
redis.call("SET", KEYS[3], ARGV[6])
return 1
`)

// RedisStore is a Redis implementation of the UserStore interface. Users are
// stored as hashes keyed by address, with a separate id index and the
// profile as a JSON blob.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(client *redis.Client) ports.UserStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) userKey(address string) string { return redisPrefix + "user:" + address }
func (s *RedisStore) idKey(id string) string        { return redisPrefix + "id:" + id }
func (s *RedisStore) profileKey(id string) string   { return redisPrefix + "profile:" + id }

func (s *RedisStore) CreateUser(ctx context.Context, user *core.User, profile *core.Profile) error {
	payload, err := json.Marshal(redisProfile(profile))
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	created, err := createUserScript.Run(ctx, s.client,
		[]string{s.userKey(user.Address), s.idKey(user.ID), s.profileKey(user.ID)},
		user.ID, user.Address, user.Nonce, string(user.Role),
		user.CreatedAt.UTC().Format(time.RFC3339Nano), payload,
	).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	if created == 0 {
		return core.ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) UserByAddress(ctx context.Context, address string) (*core.User, error) {
	fields, err := s.client.HGetAll(ctx, s.userKey(address)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	if len(fields) == 0 {
		return nil, core.ErrNotFound
	}
	return userFromHash(fields)
}

func (s *RedisStore) UserByID(ctx context.Context, id string) (*core.User, error) {
	address, err := s.client.Get(ctx, s.idKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	return s.UserByAddress(ctx, address)
}

func (s *RedisStore) SetNonce(ctx context.Context, address, nonce string) error {
	key := s.userKey(address)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	if exists == 0 {
		return core.ErrNotFound
	}
	if err := s.client.HSet(ctx, key,
		"nonce", nonce,
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	return nil
}

func (s *RedisStore) ConsumeNonce(ctx context.Context, address, presented, next string) error {
	res, err := consumeNonceScript.Run(ctx, s.client,
		[]string{s.userKey(address)},
		presented, next, time.Now().UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return core.ErrNonceMismatch
	default:
		return core.ErrNotFound
	}
}

func (s *RedisStore) Profile(ctx context.Context, userID string) (*core.Profile, error) {
	payload, err := s.client.Get(ctx, s.profileKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}

	var doc profileDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return doc.toProfile(), nil
}

func (s *RedisStore) SaveProfile(ctx context.Context, profile *core.Profile) error {
	key := s.profileKey(profile.UserID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	if exists == 0 {
		return core.ErrNotFound
	}

	payload, err := json.Marshal(redisProfile(profile))
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	return nil
}

// profileDoc is the JSON shape profiles take inside Redis.
type profileDoc struct {
	UserID           string    `json:"user_id"`
	Role             string    `json:"role"`
	Name             string    `json:"name,omitempty"`
	OrganizationName string    `json:"organization_name,omitempty"`
	Email            string    `json:"email,omitempty"`
	Skills           []string  `json:"skills,omitempty"`
	Experience       int       `json:"experience,omitempty"`
	Completed        bool      `json:"completed"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func redisProfile(p *core.Profile) profileDoc {
	return profileDoc{
		UserID:           p.UserID,
		Role:             string(p.Role),
		Name:             p.Name,
		OrganizationName: p.OrganizationName,
		Email:            p.Email,
		Skills:           p.Skills,
		Experience:       p.Experience,
		Completed:        p.Completed,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func (d profileDoc) toProfile() *core.Profile {
	return &core.Profile{
		UserID:           d.UserID,
		Role:             core.Role(d.Role),
		Name:             d.Name,
		OrganizationName: d.OrganizationName,
		Email:            d.Email,
		Skills:           d.Skills,
		Experience:       d.Experience,
		Completed:        d.Completed,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func userFromHash(fields map[string]string) (*core.User, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid created_at in user hash: %w", err)
	}
	updatedAt := createdAt
	if raw, ok := fields["updated_at"]; ok {
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			updatedAt = parsed
		}
	}
	return &core.User{
		ID:        fields["id"],
		Address:   fields["address"],
		Nonce:     fields["nonce"],
		Role:      core.Role(fields["role"]),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
