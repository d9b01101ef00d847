package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned by Load for an unknown session id.
var ErrNotFound = errors.New("session not found")

// Backend is the narrow storage contract the core depends on. Local
// filesystem and remote sync targets are variants behind this
// interface, selected by configuration at startup.
type Backend interface {
	Save(sess *Session) error
	Load(id string) (*Session, error)
	List() ([]Summary, error)
}

// FSBackend stores each session as one JSON document under a root
// directory. Writes go through a temp file and an atomic rename so an
// external reader never observes a partially written session.
type FSBackend struct {
	dir string
}

// NewFSBackend creates the root directory if needed.
func NewFSBackend(dir string) (*FSBackend, error) {
	if dir == "" {
		return nil, errors.New("sessions directory is required")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}

	return &FSBackend{dir: dir}, nil
}

// Dir returns the backend's root directory.
func (b *FSBackend) Dir() string {
	return b.dir
}

// Save durably writes the session. The publish step is an atomic
// rename; a crash mid-write leaves any previously saved copy intact.
func (b *FSBackend) Save(sess *Session) error {
	if err := validateID(sess.ID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	data = append(data, '\n')

	tmp, err := os.CreateTemp(b.dir, sess.ID+".tmp-*")
	if err != nil {
		return fmt.Errorf("create session temp file: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return fmt.Errorf("write session: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return fmt.Errorf("sync session: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("close session temp file: %w", err)
	}

	if err := os.Rename(tmpPath, b.path(sess.ID)); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("publish session: %w", err)
	}

	return nil
}

// Load reads one session by id.
func (b *FSBackend) Load(id string) (*Session, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.path(id)) //nolint:gosec // id is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return &sess, nil
}

// List returns summaries of all stored sessions, newest first.
// Unreadable or partially deleted entries are skipped.
func (b *FSBackend) List() ([]Summary, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("list sessions: %w", err)
	}

	summaries := make([]Summary, 0, len(entries))

	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		sess, err := b.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}

		summaries = append(summaries, sess.Summarize())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})

	return summaries, nil
}

// PruneOlderThan removes sessions that started before cutoff, along
// with their raw sidecar logs. It returns the number of sessions
// removed.
func (b *FSBackend) PruneOlderThan(cutoff time.Time) (int, error) {
	summaries, err := b.List()
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, s := range summaries {
		if !s.StartTime.Before(cutoff) {
			continue
		}

		if err := os.Remove(b.path(s.ID)); err != nil {
			return removed, fmt.Errorf("prune session %s: %w", s.ID, err)
		}

		if err := os.Remove(rawLogPath(b.dir, s.ID)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("prune raw log %s: %w", s.ID, err)
		}

		removed++
	}

	return removed, nil
}

func (b *FSBackend) path(id string) string {
	return filepath.Join(b.dir, id+".json")
}

func validateID(id string) error {
	if id == "" {
		return errors.New("session id is required")
	}

	if id != filepath.Base(id) || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return errors.New("invalid session id")
	}

	return nil
}
