// Package segment groups stabilized text lines into conversation
// turns.
//
// A turn is one exchange: the user's typed prompt followed by the
// program's response. Segmentation is driven by content, not
// wall-clock interleaving: a user line opens (or reopens) a turn, the
// first program line after it starts the response, and the next user
// line or a bare prompt redraw closes it. Program output with no open
// user turn, such as a startup banner, becomes a response-only turn.
package segment

import (
	"regexp"
	"strings"
	"time"

	"github.com/scribe-dev/scribe/internal/session"
	"github.com/scribe-dev/scribe/internal/term"
)

// DefaultPromptPattern matches the idle-prompt lines common to shells
// and interactive CLIs. A bare prompt line carries no content; its
// reappearance signals that the current response finished.
const DefaultPromptPattern = `^\s*(?:[>$#%❯]|>>>)\s*$`

// Turn is one completed exchange handed to the sink.
type Turn struct {
	User        string
	UserAt      time.Time
	Assistant   string
	AssistantAt time.Time
}

// Sink receives completed turns in order.
type Sink func(turn Turn)

// Observer is notified after each completed turn is handed to the
// sink. Observers run in registration order and must not block.
type Observer interface {
	TurnCompleted(turn Turn)
}

// Config holds segmentation settings.
type Config struct {
	// PromptPattern overrides DefaultPromptPattern. An invalid
	// expression falls back to the default.
	PromptPattern string

	Observers []Observer
}

type phase int

const (
	phaseIdle phase = iota
	phaseUserInput
	phaseResponse
)

// Segmenter accumulates lines into turns. Driven synchronously from
// the relay loop; not safe for concurrent use.
type Segmenter struct {
	promptRe  *regexp.Regexp
	sink      Sink
	observers []Observer

	phase  phase
	user   []string
	userAt time.Time
	resp   []string
	respAt time.Time
}

// New creates a Segmenter feeding completed turns to sink.
func New(cfg Config, sink Sink) *Segmenter {
	pattern := cfg.PromptPattern
	if pattern == "" {
		pattern = DefaultPromptPattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		re = regexp.MustCompile(DefaultPromptPattern)
	}

	return &Segmenter{
		promptRe:  re,
		sink:      sink,
		observers: cfg.Observers,
	}
}

// Line consumes one stabilized line event.
func (s *Segmenter) Line(l term.Line) {
	text := term.Clean(l.Text)

	switch l.Role {
	case term.RoleUser:
		s.userLine(text, l.Time)
	case term.RoleAssistant:
		s.assistantLine(text, l.Time)
	}
}

func (s *Segmenter) userLine(text string, at time.Time) {
	// The user could only type because the program was back at its
	// prompt: any user line during a response closes the turn.
	if s.phase == phaseResponse {
		s.closeTurn()
	}

	if text == "" || s.promptRe.MatchString(text) {
		return
	}

	if s.phase == phaseIdle {
		// A pending banner belongs to the program's opening, not to
		// the prompt the user is typing now.
		if len(s.resp) > 0 {
			s.closeTurn()
		}

		s.phase = phaseUserInput
		s.userAt = at
	}

	s.user = append(s.user, text)
}

func (s *Segmenter) assistantLine(text string, at time.Time) {
	if text == "" {
		return
	}

	if s.promptRe.MatchString(text) {
		// Idle prompt redraw: the response, if any, is complete.
		if s.phase == phaseResponse {
			s.closeTurn()
		}

		return
	}

	if s.phase == phaseUserInput {
		s.phase = phaseResponse
	}

	// Interactive programs echo the typed prompt back; that echo is
	// not response content.
	if len(s.user) > 0 && text == strings.TrimSpace(strings.Join(s.user, "\n")) {
		return
	}

	if len(s.resp) == 0 {
		s.respAt = at
	}

	s.resp = append(s.resp, text)
}

// Close flushes any in-progress turn. Called once at session end; a
// turn that never saw its closing prompt is emitted as-is.
func (s *Segmenter) Close() {
	s.closeTurn()
}

func (s *Segmenter) closeTurn() {
	if len(s.user) == 0 && len(s.resp) == 0 {
		s.phase = phaseIdle
		return
	}

	turn := Turn{
		User:        strings.Join(s.user, "\n"),
		UserAt:      s.userAt,
		Assistant:   strings.Join(s.resp, "\n"),
		AssistantAt: s.respAt,
	}

	s.user = nil
	s.resp = nil
	s.phase = phaseIdle

	s.sink(turn)

	for _, obs := range s.observers {
		obs.TurnCompleted(turn)
	}
}

// AppendTurn writes a completed turn into the session store: the user
// interaction first, then the assistant one, skipping empty sides.
func AppendTurn(store *session.Store, turn Turn) {
	if turn.User != "" {
		store.Append(session.RoleUser, turn.User, turn.UserAt)
	}

	if turn.Assistant != "" {
		store.Append(session.RoleAssistant, turn.Assistant, turn.AssistantAt)
	}
}
