// Package transcript mirrors recent room traffic into Redis for transports
// that cannot read history or list members themselves.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultCapacity = 500
	ttlTranscript   = 30 * 24 * time.Hour
	replaceRetries  = 3
)

var (
	ErrEntryNotFound = errors.New("transcript entry not found")
	ErrUnknownUser   = errors.New("user never seen in this room")
	ErrAmbiguousUser = errors.New("several users share this name")
)

// Entry is stored as JSON in the list tr:<room>, newest at index 0.
type Entry struct {
	ID      string    `json:"id"`
	FromBot bool      `json:"from_bot"`
	UserID  string    `json:"user_id,omitempty"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

type Store struct {
	rdb      *redis.Client
	capacity int64
}

func NewStore(rdb *redis.Client, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{rdb: rdb, capacity: int64(capacity)}
}

func (s *Store) keyLog(room string) string   { return "tr:" + strings.TrimSpace(room) }
func (s *Store) keyNames(room string) string { return s.keyLog(room) + ":names" }

// Append records e as the newest entry of room and trims the list to capacity.
func (s *Store) Append(ctx context.Context, room string, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := s.keyLog(room)
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, s.capacity-1)
	pipe.Expire(ctx, key, ttlTranscript)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to max entries of room, newest first.
func (s *Store) Recent(ctx context.Context, room string, max int) ([]Entry, error) {
	if max <= 0 {
		return nil, nil
	}
	raws, err := s.rdb.LRange(ctx, s.keyLog(room), 0, int64(max)-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Replace swaps the text of entry id in place. The list is watched so a
// concurrent Append cannot shift the index between lookup and write.
func (s *Store) Replace(ctx context.Context, room, id, text string) error {
	key := s.keyLog(room)
	var err error
	for i := 0; i < replaceRetries; i++ {
		err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raws, err := tx.LRange(ctx, key, 0, -1).Result()
			if err != nil && err != redis.Nil {
				return err
			}
			for idx, raw := range raws {
				var e Entry
				if json.Unmarshal([]byte(raw), &e) != nil || e.ID != id {
					continue
				}
				e.Text = text
				updated, err := json.Marshal(e)
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.LSet(ctx, key, int64(idx), updated)
					return nil
				})
				return err
			}
			return ErrEntryNotFound
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

// RememberName stores the latest display name seen for userID in room.
func (s *Store) RememberName(ctx context.Context, room, userID, name string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(name) == "" {
		return nil
	}
	key := s.keyNames(room)
	if err := s.rdb.HSet(ctx, key, userID, name).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, ttlTranscript).Err()
}

func (s *Store) Name(ctx context.Context, room, userID string) (string, error) {
	name, err := s.rdb.HGet(ctx, s.keyNames(room), userID).Result()
	if err == redis.Nil {
		return "", ErrUnknownUser
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// FindUser returns the id remembered under a display name, compared without
// case. A name shared by several users is ErrAmbiguousUser.
func (s *Store) FindUser(ctx context.Context, room, name string) (string, error) {
	name = strings.TrimSpace(name)
	all, err := s.rdb.HGetAll(ctx, s.keyNames(room)).Result()
	if err != nil {
		return "", err
	}
	found := ""
	for id, n := range all {
		if !strings.EqualFold(n, name) {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("%w: %s", ErrAmbiguousUser, name)
		}
		found = id
	}
	if found == "" {
		return "", ErrUnknownUser
	}
	return found, nil
}
