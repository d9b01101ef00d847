// Package term reconstructs stable text lines from a raw terminal byte
// stream.
//
// Interactive programs redraw lines in place with carriage returns,
// cursor moves, and erase sequences; spinners and progress tokens churn
// through dozens of revisions that never represent real content. The
// normalizer runs a small escape-sequence state machine per stream and
// holds each in-place-rewritten line as tentative until it either gains
// a terminating newline or survives a stabilization window unchanged.
// Lines rewritten past the revision cutoff inside the window are
// classified transient and dropped. The heuristic trades recall for
// precision: a short-lived genuine line can be lost, and the thresholds
// are configuration, not constants.
package term

import (
	"time"
)

// Role tags a byte stream by its source.
type Role string

// Stream roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Line is one stabilized text-line event.
type Line struct {
	Role Role
	Text string
	Time time.Time
}

// Config holds the stabilization tunables. The defaults work for
// common CLI spinners but are approximate; calibrate per target
// program.
type Config struct {
	// StabilizeWindow is how long an unterminated line must sit
	// unchanged before it is emitted as stable.
	StabilizeWindow time.Duration

	// TransientRevisions is the number of in-place rewrites inside the
	// window after which a line is treated as animation and withheld
	// from timer-based emission. Newline termination still emits it.
	TransientRevisions int
}

// DefaultConfig returns the default stabilization tunables.
func DefaultConfig() Config {
	return Config{
		StabilizeWindow:    300 * time.Millisecond,
		TransientRevisions: 3,
	}
}

// maxCursorForward bounds a single cursor-forward move. Counts beyond
// any plausible line width must not grow the line buffer.
const maxCursorForward = 4096

type parseState int

const (
	stateText parseState = iota
	stateEscape
	stateCSI
	stateOSC
	stateOSCEsc // saw ESC inside an OSC string, expecting '\' (ST)
)

// stream holds per-role parser and stabilization state.
type stream struct {
	role Role

	// CR handling: user keystrokes arrive in raw mode where Enter is a
	// bare CR, so CR terminates the line. On program output CR is a
	// carriage return preceding an in-place rewrite.
	crTerminates bool

	state  parseState
	params []byte // CSI parameter/intermediate bytes

	buf []byte // current (tentative) line
	col int    // cursor byte offset within buf

	revisions    int
	lastChange   time.Time
	timerEmitted bool   // buffer already emitted by window expiry
	lastEmitted  string // text emitted by the last window expiry
}

// Normalizer converts role-tagged raw bytes into stabilized lines.
// It is not safe for concurrent use; the relay loop drives it from a
// single goroutine.
type Normalizer struct {
	cfg     Config
	streams map[Role]*stream
}

// New creates a Normalizer with the given tunables. Zero values fall
// back to DefaultConfig.
func New(cfg Config) *Normalizer {
	def := DefaultConfig()
	if cfg.StabilizeWindow <= 0 {
		cfg.StabilizeWindow = def.StabilizeWindow
	}

	if cfg.TransientRevisions <= 0 {
		cfg.TransientRevisions = def.TransientRevisions
	}

	return &Normalizer{
		cfg: cfg,
		streams: map[Role]*stream{
			RoleUser:      {role: RoleUser, crTerminates: true},
			RoleAssistant: {role: RoleAssistant},
		},
	}
}

// Feed consumes one raw frame for the given role and returns any lines
// that stabilized as a result. The frame is not retained.
func (n *Normalizer) Feed(role Role, frame []byte, now time.Time) []Line {
	s, ok := n.streams[role]
	if !ok {
		return nil
	}

	var out []Line

	for _, b := range frame {
		out = s.consume(b, now, out)
	}

	return out
}

// Tick expires stabilization windows. Call it on every poll interval
// so quiet lines stabilize even when no new bytes arrive.
func (n *Normalizer) Tick(now time.Time) []Line {
	var out []Line

	for _, role := range []Role{RoleUser, RoleAssistant} {
		s := n.streams[role]
		if len(s.buf) == 0 {
			continue
		}

		if now.Sub(s.lastChange) < n.cfg.StabilizeWindow {
			continue
		}

		// Heavily rewritten lines are animation; withhold them until a
		// newline proves otherwise.
		if s.revisions > n.cfg.TransientRevisions {
			continue
		}

		if text := string(s.buf); !s.timerEmitted || text != s.lastEmitted {
			out = append(out, Line{Role: role, Text: text, Time: now})
			s.timerEmitted = true
			s.lastEmitted = text
		}
	}

	return out
}

// Flush drains any remaining buffered text regardless of the window.
// Used once at shutdown; a partially typed or drawn line beats losing
// the data.
func (n *Normalizer) Flush(now time.Time) []Line {
	var out []Line

	for _, role := range []Role{RoleUser, RoleAssistant} {
		s := n.streams[role]
		if len(s.buf) == 0 {
			continue
		}

		if text := string(s.buf); !s.timerEmitted || text != s.lastEmitted {
			out = append(out, Line{Role: role, Text: text, Time: now})
		}

		s.reset()
	}

	return out
}

func (s *stream) consume(b byte, now time.Time, out []Line) []Line {
	switch s.state {
	case stateText:
		return s.consumeText(b, now, out)

	case stateEscape:
		switch b {
		case '[':
			s.state = stateCSI
			s.params = s.params[:0]
		case ']':
			s.state = stateOSC
		default:
			// Two-byte escape (charset designation, keypad modes) or
			// something malformed. Either way: resync.
			s.state = stateText
		}

		return out

	case stateCSI:
		switch {
		case b >= 0x30 && b <= 0x3F: // parameters
			s.params = append(s.params, b)
		case b >= 0x20 && b <= 0x2F: // intermediates
			s.params = append(s.params, b)
		case b >= 0x40 && b <= 0x7E: // final byte
			s.state = stateText
			s.dispatchCSI(b, now)
		default:
			// Malformed sequence: discard and resync.
			s.state = stateText
		}

		return out

	case stateOSC:
		switch b {
		case 0x07: // BEL terminator
			s.state = stateText
		case 0x1b:
			s.state = stateOSCEsc
		}
		// Titles and hyperlinks, never content: discarded.
		return out

	case stateOSCEsc:
		if b == '\\' { // ST terminator
			s.state = stateText
		} else {
			s.state = stateOSC
		}

		return out
	}

	return out
}

func (s *stream) consumeText(b byte, now time.Time, out []Line) []Line {
	switch {
	case b == 0x1b:
		s.state = stateEscape

	case b == '\n':
		out = s.emitNewline(now, out)

	case b == '\r':
		if s.crTerminates {
			out = s.emitNewline(now, out)
			break
		}

		if s.col > 0 && len(s.buf) > 0 {
			s.markRevision(now)
		}

		s.col = 0

	case b == '\b':
		if s.col > 0 {
			s.col--
			if s.crTerminates && s.col < len(s.buf) {
				// Interactive editing of typed input: drop the rubbed
				// out byte rather than holding it for overwrite.
				s.buf = s.buf[:s.col]
			}
		}

	case b == '\t':
		s.writeByte(' ', now)

	case b >= 0x20 && b != 0x7f:
		s.writeByte(b, now)

	default:
		// Remaining C0 controls carry no text content.
	}

	return out
}

func (s *stream) emitNewline(now time.Time, out []Line) []Line {
	text := string(s.buf)
	if !s.timerEmitted || text != s.lastEmitted {
		out = append(out, Line{Role: s.role, Text: text, Time: now})
	}

	s.reset()

	return out
}

func (s *stream) writeByte(b byte, now time.Time) {
	if s.col < len(s.buf) {
		// Overwrite in place. Truncating at the cursor keeps the
		// common redraw shapes correct without cell-level bookkeeping.
		s.buf = s.buf[:s.col]
		s.markRevision(now)
	}

	s.buf = append(s.buf, b)
	s.col = len(s.buf)
	s.lastChange = now
}

func (s *stream) dispatchCSI(final byte, now time.Time) {
	switch final {
	case 'K': // erase in line
		if len(s.buf) == 0 {
			return
		}

		s.markRevision(now)

		if s.param(0) == 2 || s.col == 0 {
			s.buf = s.buf[:0]
			return
		}

		if s.col < len(s.buf) {
			s.buf = s.buf[:s.col]
		}

	case 'J': // erase in display
		if len(s.buf) > 0 {
			s.markRevision(now)
		}

		s.buf = s.buf[:0]
		s.col = 0

	case 'G': // cursor horizontal absolute
		s.moveCol(s.param(1)-1, now)

	case 'H', 'f': // cursor position; only the column matters here
		col := 1
		if parts := splitParams(s.params); len(parts) >= 2 {
			col = parts[1]
		}

		s.moveCol(col-1, now)

	case 'D': // cursor back
		s.moveCol(s.col-max(1, s.param(1)), now)

	case 'C': // cursor forward
		n := min(max(1, s.param(1)), maxCursorForward)
		for i := 0; i < n; i++ {
			if s.col < len(s.buf) {
				s.col++
			} else {
				s.buf = append(s.buf, ' ')
				s.col = len(s.buf)
			}
		}

	case 'A', 'B': // vertical moves: the line is being redrawn around
		if len(s.buf) > 0 {
			s.markRevision(now)
		}

	case 'm': // style change, not rendered
	default:
		// Unrecognized final byte: already resynced to TEXT.
	}
}

func (s *stream) moveCol(col int, now time.Time) {
	if col < 0 {
		col = 0
	}

	if col < s.col && len(s.buf) > 0 {
		s.markRevision(now)
	}

	if col > len(s.buf) {
		col = len(s.buf)
	}

	s.col = col
}

// param returns the first numeric CSI parameter, or def when absent.
func (s *stream) param(def int) int {
	parts := splitParams(s.params)
	if len(parts) == 0 {
		return def
	}

	return parts[0]
}

func splitParams(raw []byte) []int {
	if len(raw) == 0 {
		return nil
	}

	var (
		parts []int
		cur   int
		seen  bool
	)

	for _, b := range raw {
		switch {
		case b >= '0' && b <= '9':
			cur = cur*10 + int(b-'0')
			seen = true
		case b == ';':
			parts = append(parts, cur)
			cur = 0
			seen = false
		default:
			// Private markers and intermediates are skipped.
		}
	}

	if seen {
		parts = append(parts, cur)
	}

	return parts
}

func (s *stream) markRevision(now time.Time) {
	// Revisions separated by a long quiet gap are independent rewrites,
	// not one animation; age the counter out.
	if !s.lastChange.IsZero() && now.Sub(s.lastChange) >= time.Second {
		s.revisions = 0
	}

	s.revisions++
	s.lastChange = now
}

func (s *stream) reset() {
	s.buf = s.buf[:0]
	s.col = 0
	s.revisions = 0
	s.timerEmitted = false
	s.lastEmitted = ""
}
