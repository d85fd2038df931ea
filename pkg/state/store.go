// Package state persists the bridge's last-seen marker between runs.
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RunState is the only data that survives between runs.
// An empty LastSeenID means no post has been published yet.
type RunState struct {
	LastSeenID string
	UpdatedAt  time.Time
}

func (s RunState) Empty() bool { return strings.TrimSpace(s.LastSeenID) == "" }

// Store loads and saves RunState. Load never fails: missing or corrupt
// state is reported as an empty RunState.
type Store interface {
	Load(ctx context.Context) RunState
	Save(ctx context.Context, s RunState) error
	Close() error
}

// Open returns the Store for path using the named backend (see ResolveBackend).
func Open(path, backend, logPrefix string) (Store, error) {
	path = ResolvePath(path)
	b, err := ResolveBackend(path, backend)
	if err != nil {
		return nil, err
	}
	if b == BackendSQLite {
		return OpenSQLite(path, logPrefix)
	}
	return NewFileStore(path, logPrefix), nil
}

type FileStore struct {
	path      string
	logPrefix string
}

func NewFileStore(path, logPrefix string) *FileStore {
	return &FileStore{path: path, logPrefix: logPrefix}
}

func (s *FileStore) Path() string { return s.path }

type fileState struct {
	LastSeenID string `json:"last_seen_id"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

func (s *FileStore) Load(_ context.Context) RunState {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("%s state unreadable, treating as empty: path=%s err=%v", s.logPrefix, s.path, err)
		}
		return RunState{}
	}
	st, ok := decodeState(b)
	if !ok {
		log.Printf("%s state corrupt, treating as empty: path=%s", s.logPrefix, s.path)
		return RunState{}
	}
	return st
}

func (s *FileStore) Save(_ context.Context, st RunState) error {
	out := fileState{LastSeenID: strings.TrimSpace(st.LastSeenID)}
	if !st.UpdatedAt.IsZero() {
		out.UpdatedAt = st.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return SaveJSONFileIndented(s.path, out)
}

func (s *FileStore) Close() error { return nil }

var legacyShortcodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// decodeState accepts the current JSON layout plus the formats written by
// earlier deployments: {"last_seen_key": ..., "updated_at": <unix>} and a
// bare shortcode text file.
func decodeState(b []byte) (RunState, bool) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return RunState{}, true
	}

	if trimmed[0] == '{' {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return RunState{}, false
		}
		var st RunState
		for _, key := range []string{"last_seen_id", "last_seen_key", "lastSeenId"} {
			v, ok := raw[key]
			if !ok {
				continue
			}
			var id string
			if err := json.Unmarshal(v, &id); err != nil {
				return RunState{}, false
			}
			st.LastSeenID = strings.TrimSpace(id)
			break
		}
		if v, ok := raw["updated_at"]; ok {
			st.UpdatedAt = decodeUpdatedAt(v)
		}
		return st, true
	}

	line := string(trimmed)
	if legacyShortcodeRe.MatchString(line) {
		return RunState{LastSeenID: line}, true
	}
	return RunState{}, false
}

func decodeUpdatedAt(v json.RawMessage) time.Time {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
			return t.UTC()
		}
		return time.Time{}
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		if secs, err := strconv.ParseInt(n.String(), 10, 64); err == nil && secs > 0 {
			return time.Unix(secs, 0).UTC()
		}
	}
	return time.Time{}
}
