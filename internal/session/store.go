// Package session persists the signed-in user between runs as a single JSON
// document in the application data directory.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spinsa/inventario/internal/model"
)

// FileName is the session document inside the data directory.
const FileName = "user_data.json"

// SchemaVersion is written into every document saved by this package.
const SchemaVersion = 1

// ErrCorrupt is returned by Read when the file exists but holds neither the
// canonical document nor one of the legacy shapes.
var ErrCorrupt = errors.New("session file is corrupt")

// document is the canonical on-disk shape.
type document struct {
	Version int         `json:"version"`
	SavedAt time.Time   `json:"saved_at"`
	User    *model.User `json:"user"`
}

// Store reads and writes the session document.  Calls are serialized so a
// Save racing a Clear never leaves a half-renamed file behind.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewStore returns a store for dir/user_data.json.  dir is created on the
// first Save.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   filepath.Join(dir, FileName),
		logger: logger.With(slog.String("component", "session")),
		now:    time.Now,
	}
}

// Path returns the location of the session document.
func (s *Store) Path() string { return s.path }

// Read returns the stored user, or nil when no session file exists.
func (s *Store) Read() (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	u, legacy, err := decode(raw)
	if err != nil {
		s.logger.Warn("session file rejected", slog.String("path", s.path), slog.Any("error", err))
		return nil, err
	}
	if legacy {
		s.logger.Info("legacy session file read; it is rewritten on next save", slog.String("path", s.path))
	}
	return u, nil
}

// decode accepts the canonical document, a bare user object or a
// one-element array of users.  legacy reports one of the latter two.
func decode(raw []byte) (u *model.User, legacy bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false, ErrCorrupt
	}
	switch raw[0] {
	case '[':
		var arr []model.User
		if err := json.Unmarshal(raw, &arr); err != nil || len(arr) != 1 {
			return nil, false, ErrCorrupt
		}
		return valid(&arr[0], true)
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, false, ErrCorrupt
		}
		if _, ok := probe["version"]; ok {
			var doc document
			if err := json.Unmarshal(raw, &doc); err != nil || doc.Version != SchemaVersion || doc.User == nil {
				return nil, false, ErrCorrupt
			}
			return valid(doc.User, false)
		}
		var bare model.User
		if err := json.Unmarshal(raw, &bare); err != nil {
			return nil, false, ErrCorrupt
		}
		return valid(&bare, true)
	default:
		return nil, false, ErrCorrupt
	}
}

func valid(u *model.User, legacy bool) (*model.User, bool, error) {
	if u.ID <= 0 || u.RoleID == 0 {
		return nil, false, ErrCorrupt
	}
	return u, legacy, nil
}

// Save replaces the session with u.  The document is written to a temp file
// in the same directory and renamed over the target.
func (s *Store) Save(u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.MarshalIndent(document{Version: SchemaVersion, SavedAt: s.now().UTC(), User: &u}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	s.logger.Debug("session saved", slog.Int64("user_id", u.ID))
	return nil
}

// Clear removes the session file.  A missing file only logs a warning.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("no session file to clear", slog.String("path", s.path))
			return nil
		}
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
