package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scribe-dev/scribe/internal/privacy"
)

// Observer is notified at well-defined points of the session
// lifecycle. Observers run in registration order on the store's
// goroutine; they must not block.
type Observer interface {
	InteractionAppended(sess *Session, in Interaction)
	SessionFinalized(sess *Session)
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// Engine masks every turn before it is buffered for persistence.
	Engine *privacy.Engine

	// Backend persists the aggregate.
	Backend Backend

	// RawLog, when non-nil, retains pre-mask turn text.
	RawLog *RawLog

	// RetryBackoff is the minimum wait between persist attempts after
	// a failure.
	RetryBackoff time.Duration

	Observers []Observer

	Logger *slog.Logger
}

// Store owns one Session aggregate for the lifetime of a run. All
// mutation goes through Append and Finalize; interactions are
// append-only and masked before anything leaves process memory.
type Store struct {
	mu sync.Mutex

	sess    *Session
	engine  *privacy.Engine
	backend Backend
	rawLog  *RawLog

	observers []Observer
	logger    *slog.Logger

	dirty        bool
	finalized    bool
	failures     int
	nextAttempt  time.Time
	retryBackoff time.Duration
}

// NewStore wraps an active session.
func NewStore(sess *Session, opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	return &Store{
		sess:         sess,
		engine:       opts.Engine,
		backend:      opts.Backend,
		rawLog:       opts.RawLog,
		observers:    opts.Observers,
		logger:       logger,
		retryBackoff: backoff,
	}
}

// Session returns the owned aggregate. Callers must treat it as
// read-only; mutation happens only through the store.
func (s *Store) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sess
}

// Append masks one completed turn's full text in a single pass and
// appends it as the next interaction. Masking never sees partial byte
// chunks, so a secret cannot straddle a read boundary.
func (s *Store) Append(role Role, text string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return
	}

	masked := text

	var detected []string
	if s.engine != nil {
		masked, detected = s.engine.ScanAndMask(text)
	}

	if detected == nil {
		detected = []string{}
	}

	in := Interaction{
		Seq:              len(s.sess.Interactions),
		Timestamp:        at.UTC(),
		Role:             role,
		Content:          masked,
		DetectedPatterns: detected,
		RawRetained:      s.rawLog != nil,
	}

	if s.rawLog != nil {
		if err := s.rawLog.Append(in.Seq, role, text, at); err != nil {
			s.logger.Warn("raw retention write failed",
				slog.String("component", "session"),
				slog.String("error", err.Error()),
			)
		}
	}

	s.sess.Interactions = append(s.sess.Interactions, in)
	s.dirty = true

	for _, obs := range s.observers {
		obs.InteractionAppended(s.sess, in)
	}
}

// Flush persists the aggregate if it changed since the last successful
// write. Failures degrade: the session stays buffered in memory, a
// warning is logged, and the next attempt waits out a backoff. The
// relay loop never crashes over a storage failure.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushLocked()
}

func (s *Store) flushLocked() {
	if !s.dirty || s.backend == nil {
		return
	}

	now := time.Now()
	if s.failures > 0 && now.Before(s.nextAttempt) {
		return
	}

	if err := s.backend.Save(s.sess); err != nil {
		s.failures++
		s.nextAttempt = now.Add(s.retryBackoff * time.Duration(s.failures))

		s.logger.Warn("session persist failed, keeping buffered",
			slog.String("component", "session"),
			slog.String("session.id", s.sess.ID),
			slog.Int("attempt", s.failures),
			slog.String("error", err.Error()),
		)

		return
	}

	s.dirty = false
	s.failures = 0
}

// Finalize closes the session exactly once: sets the terminal status
// and end time, performs the durable write, and closes the raw
// sidecar. Returns the persistence error, if any, so the caller can
// surface a final warning.
func (s *Store) Finalize(status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return nil
	}

	s.finalized = true

	now := time.Now().UTC()
	s.sess.Status = status
	s.sess.EndTime = &now
	s.dirty = true

	var errs []error

	if s.backend != nil {
		if err := s.backend.Save(s.sess); err != nil {
			errs = append(errs, fmt.Errorf("persist session %s: %w", s.sess.ID, err))
		} else {
			s.dirty = false
		}
	}

	if s.rawLog != nil {
		if err := s.rawLog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close raw log: %w", err))
		}
	}

	for _, obs := range s.observers {
		obs.SessionFinalized(s.sess)
	}

	return errors.Join(errs...)
}
