package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"vendordesk/internal/adapters/storage"
	"vendordesk/internal/domain/errs"
	domain "vendordesk/internal/domain/notification"
)

// RedisStore keeps mailboxes in Redis. Each mailbox is a list of ids
// (head = newest), each notification a hash, and unread ids a set per mailbox.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a notification store on client; keys are namespaced by prefix.
// PRE: client is connected
// POST: Returns a store; an empty prefix defaults to "vendordesk"
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "vendordesk"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) mailboxKey(scope domain.Scope) string {
	return s.prefix + ":mailbox:" + string(scope)
}

func (s *RedisStore) unreadKey(scope domain.Scope) string {
	return s.prefix + ":unread:" + string(scope)
}

func (s *RedisStore) itemKey(id string) string {
	return s.prefix + ":notification:" + id
}

// Append adds n to the head of its mailbox.
func (s *RedisStore) Append(ctx context.Context, n domain.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.itemKey(n.ID), map[string]any{
			"scope":      string(n.Scope),
			"kind":       n.Kind,
			"title":      n.Title,
			"body":       n.Body,
			"created_at": storage.FormatTime(n.CreatedAt),
			"read":       strconv.FormatBool(n.Read),
		})
		pipe.LPush(ctx, s.mailboxKey(n.Scope), n.ID)
		if !n.Read {
			pipe.SAdd(ctx, s.unreadKey(n.Scope), n.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

// Get retrieves one notification.
func (s *RedisStore) Get(ctx context.Context, id string) (domain.Notification, error) {
	fields, err := s.client.HGetAll(ctx, s.itemKey(id)).Result()
	if err != nil {
		return domain.Notification{}, fmt.Errorf("redis get: %w", err)
	}
	if len(fields) == 0 {
		return domain.Notification{}, fmt.Errorf("%w: notification %s", errs.ErrNotFound, id)
	}
	return decodeNotification(id, fields)
}

// List returns the mailbox, newest first.
func (s *RedisStore) List(ctx context.Context, scope domain.Scope) ([]domain.Notification, error) {
	ids, err := s.client.LRange(ctx, s.mailboxKey(scope), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.itemKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}

	out := make([]domain.Notification, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Cleared between LRANGE and HGETALL.
			continue
		}
		n, err := decodeNotification(ids[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// UnreadCount counts mailbox entries not yet read.
func (s *RedisStore) UnreadCount(ctx context.Context, scope domain.Scope) (int, error) {
	n, err := s.client.SCard(ctx, s.unreadKey(scope)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis unread count: %w", err)
	}
	return int(n), nil
}

// markReadRetries bounds optimistic retries when the item changes under WATCH.
const markReadRetries = 3

// MarkRead flips one notification to read. The item key is watched so a
// concurrent Clear aborts the update instead of recreating a partial hash.
func (s *RedisStore) MarkRead(ctx context.Context, id string) error {
	key := s.itemKey(id)
	markRead := func(tx *redis.Tx) error {
		scope, err := tx.HGet(ctx, key, "scope").Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "read", "true")
			pipe.SRem(ctx, s.unreadKey(domain.Scope(scope)), id)
			return nil
		})
		return err
	}

	for i := 0; i < markReadRetries; i++ {
		err := s.client.Watch(ctx, markRead, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis mark read: %w", err)
		}
		return nil
	}
	return fmt.Errorf("redis mark read %s: %w", id, redis.TxFailedErr)
}

// Clear empties the mailbox.
func (s *RedisStore) Clear(ctx context.Context, scope domain.Scope) error {
	ids, err := s.client.LRange(ctx, s.mailboxKey(scope), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	keys := []string{s.mailboxKey(scope), s.unreadKey(scope)}
	for _, id := range ids {
		keys = append(keys, s.itemKey(id))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}

func decodeNotification(id string, fields map[string]string) (domain.Notification, error) {
	createdAt, err := storage.ParseTime(fields["created_at"])
	if err != nil {
		return domain.Notification{}, fmt.Errorf("parse created_at: %w", err)
	}
	read, err := strconv.ParseBool(fields["read"])
	if err != nil {
		return domain.Notification{}, fmt.Errorf("parse read: %w", err)
	}
	return domain.Notification{
		ID:        id,
		Scope:     domain.Scope(fields["scope"]),
		Kind:      fields["kind"],
		Title:     fields["title"],
		Body:      fields["body"],
		CreatedAt: createdAt,
		Read:      read,
	}, nil
}
