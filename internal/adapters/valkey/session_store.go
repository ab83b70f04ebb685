package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

// SessionStore implements ports.SessionStore. Sessions are stored as JSON,
// every write refreshes the TTL, and Save is a server-side compare-and-set
// so several processes can update the same session.
type SessionStore struct {
	client valkey.Client
	ttl    time.Duration
}

func sessionKey(id string) string { return keyPrefix + "session:" + id }

// Create fails when the ID is already taken.
func (s *SessionStore) Create(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	cmd := s.client.B().Set().Key(sessionKey(sess.ID)).Value(valkey.BinaryString(data)).Nx()
	var resp valkey.ValkeyResult
	if s.ttl > 0 {
		resp = s.client.Do(ctx, cmd.Ex(s.ttl).Build())
	} else {
		resp = s.client.Do(ctx, cmd.Build())
	}
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return fmt.Errorf("%w: session %s already exists", domain.ErrInvalidInput, sess.ID)
		}
		return fmt.Errorf("valkey create session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(sessionKey(id)).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("valkey get session: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// casSave replaces KEYS[1] with ARGV[2] only while the stored session is at
// version ARGV[1]. ARGV[3] is the TTL in milliseconds, 0 for none.
// Returns -1 when the key is gone, 0 on a version mismatch and 1 on success.
var casSave = valkey.NewLuaScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then return -1 end
local stored = cjson.decode(cur)['version'] or 0
if tonumber(stored) ~= tonumber(ARGV[1]) then return 0 end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'XX', 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[2], 'XX')
end
return 1
`)

// Save writes sess if nobody else has saved it since it was read. The
// check and the write run as one script on the server.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	next := *sess
	next.Version = sess.Version + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	res, err := casSave.Exec(ctx, s.client,
		[]string{sessionKey(sess.ID)},
		[]string{
			strconv.FormatInt(sess.Version, 10),
			string(data),
			strconv.FormatInt(s.ttl.Milliseconds(), 10),
		},
	).AsInt64()
	if err != nil {
		return fmt.Errorf("valkey save session: %w", err)
	}
	switch res {
	case -1:
		return fmt.Errorf("session %s: %w", sess.ID, domain.ErrNotFound)
	case 0:
		return fmt.Errorf("session %s changed since version %d: %w", sess.ID, sess.Version, domain.ErrConflict)
	}
	sess.Version = next.Version
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Do(ctx, s.client.B().Del().Key(sessionKey(id)).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("valkey delete session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
