package term

import (
	"strings"
	"testing"
	"time"

	"github.com/hinshun/vt10x"
	"pgregory.net/rapid"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func feedAll(n *Normalizer, role Role, input string, at time.Time) []Line {
	lines := n.Feed(role, []byte(input), at)
	lines = append(lines, n.Flush(at)...)

	return lines
}

func texts(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Text)
	}

	return out
}

func TestPlainTextIdentity(t *testing.T) {
	n := New(Config{})

	lines := feedAll(n, RoleAssistant, "hello\nworld\n", t0)
	got := texts(lines)

	if len(got) != 2 || got[0] != "hello" || got[1] != "world" {
		t.Fatalf("lines = %#v, want [hello world]", got)
	}
}

func TestPlainTextIdentityProperty(t *testing.T) {
	printable := rapid.StringOfN(rapid.RuneFrom([]rune("abcdefghij XYZ0123456789")), 0, 40, -1)

	rapid.Check(t, func(t *rapid.T) {
		rows := rapid.SliceOfN(printable, 1, 10).Draw(t, "rows")

		input := strings.Join(rows, "\n") + "\n"

		n := New(Config{})
		got := texts(feedAll(n, RoleAssistant, input, t0))

		if len(got) != len(rows) {
			t.Fatalf("line count = %d, want %d (%#v vs %#v)", len(got), len(rows), got, rows)
		}

		for i := range rows {
			if got[i] != rows[i] {
				t.Fatalf("line %d = %q, want %q", i, got[i], rows[i])
			}
		}
	})
}

func TestStrippingIdempotent(t *testing.T) {
	input := "\x1b[1mStyled\x1b[0m text\r\nnext\r\n"

	first := texts(feedAll(New(Config{}), RoleAssistant, input, t0))

	normalized := strings.Join(first, "\n") + "\n"

	second := texts(feedAll(New(Config{}), RoleAssistant, normalized, t0))
	if strings.Join(second, "\n") != strings.Join(first, "\n") {
		t.Fatalf("not idempotent: first=%#v second=%#v", first, second)
	}
}

func TestEraseLineCursorHomeScenario(t *testing.T) {
	n := New(Config{})

	got := texts(n.Feed(RoleAssistant, []byte("\x1b[2K\x1b[1Ghello\r\n"), t0))
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("lines = %#v, want [hello]", got)
	}
}

func TestCursorForwardMoveClamped(t *testing.T) {
	n := New(Config{})

	got := texts(feedAll(n, RoleAssistant, "x\x1b[100000000Cy\n", t0))
	if len(got) != 1 {
		t.Fatalf("lines = %d, want 1", len(got))
	}

	if len(got[0]) > maxCursorForward+2 {
		t.Fatalf("line length = %d, want at most %d", len(got[0]), maxCursorForward+2)
	}

	if !strings.HasPrefix(got[0], "x") || !strings.HasSuffix(got[0], "y") {
		t.Fatalf("line = %q, want x...y", got[0])
	}
}

func TestSpinnerFramesDiscarded(t *testing.T) {
	n := New(Config{})

	at := t0

	var lines []Line

	for _, frame := range []string{"Honking…", "Processing…", "Thinking…", "Spinning…", "Working…"} {
		lines = append(lines, n.Feed(RoleAssistant, []byte(frame+"\r"), at)...)
		lines = append(lines, n.Tick(at)...)
		at = at.Add(50 * time.Millisecond)
	}

	lines = append(lines, n.Feed(RoleAssistant, []byte("Done.\n"), at)...)
	lines = append(lines, n.Flush(at)...)

	got := texts(lines)
	if len(got) != 1 || got[0] != "Done." {
		t.Fatalf("lines = %#v, want exactly [Done.]", got)
	}
}

func TestUnterminatedLineStabilizesAfterWindow(t *testing.T) {
	n := New(Config{StabilizeWindow: 300 * time.Millisecond})

	if got := n.Feed(RoleAssistant, []byte("waiting for input"), t0); len(got) != 0 {
		t.Fatalf("premature emission: %#v", texts(got))
	}

	if got := n.Tick(t0.Add(100 * time.Millisecond)); len(got) != 0 {
		t.Fatalf("emitted before window: %#v", texts(got))
	}

	got := n.Tick(t0.Add(400 * time.Millisecond))
	if len(got) != 1 || got[0].Text != "waiting for input" {
		t.Fatalf("Tick() = %#v, want [waiting for input]", texts(got))
	}

	// A later newline on the same unchanged buffer must not duplicate.
	if dup := n.Feed(RoleAssistant, []byte("\n"), t0.Add(500*time.Millisecond)); len(dup) != 0 {
		t.Fatalf("duplicate emission after timer: %#v", texts(dup))
	}
}

func TestOSCSequenceDiscarded(t *testing.T) {
	n := New(Config{})

	got := texts(n.Feed(RoleAssistant, []byte("\x1b]0;window title\x07real\n"), t0))
	if len(got) != 1 || got[0] != "real" {
		t.Fatalf("lines = %#v, want [real]", got)
	}

	got = texts(n.Feed(RoleAssistant, []byte("\x1b]8;;http://x\x1b\\link\n"), t0))
	if len(got) != 1 || got[0] != "link" {
		t.Fatalf("lines = %#v, want [link]", got)
	}
}

func TestMalformedEscapeResyncs(t *testing.T) {
	n := New(Config{})

	// ESC followed by an unknown introducer drops the escape and
	// continues with plain text.
	got := texts(n.Feed(RoleAssistant, []byte("\x1bQafter\n"), t0))
	if len(got) != 1 || got[0] != "after" {
		t.Fatalf("lines = %#v, want [after]", got)
	}

	// A CSI interrupted by a control byte resyncs too.
	got = texts(n.Feed(RoleAssistant, []byte("\x1b[12\x01ok\n"), t0))
	if len(got) != 1 || got[0] != "ok" {
		t.Fatalf("lines = %#v, want [ok]", got)
	}
}

func TestUserStreamCRTerminates(t *testing.T) {
	n := New(Config{})

	got := n.Feed(RoleUser, []byte("fix the bug\r"), t0)
	if len(got) != 1 || got[0].Text != "fix the bug" || got[0].Role != RoleUser {
		t.Fatalf("lines = %#v", got)
	}
}

func TestUserBackspaceEditsLine(t *testing.T) {
	n := New(Config{})

	got := n.Feed(RoleUser, []byte("helo\blo\r"), t0)
	if len(got) != 1 || got[0].Text != "hello" {
		t.Fatalf("lines = %#v, want [hello]", texts(got))
	}
}

func TestCarriageReturnOverwrite(t *testing.T) {
	n := New(Config{})

	got := texts(n.Feed(RoleAssistant, []byte("12345\rab\n"), t0))
	if len(got) != 1 || got[0] != "ab" {
		t.Fatalf("lines = %#v, want [ab]", got)
	}
}

// TestPassThroughRendersIdentically cross-checks against a real
// terminal emulator: the bytes the relay passes through must render the
// same whether or not the normalizer taps them, because the tap never
// mutates the stream.
func TestPassThroughRendersIdentically(t *testing.T) {
	raw := []byte("plain\r\n\x1b[2K\x1b[1Gredrawn\r\n\x1b]0;title\x07tail\r\n")

	render := func(p []byte) string {
		vt := vt10x.New(vt10x.WithSize(80, 24))
		_, _ = vt.Write(p)

		return vt.String()
	}

	want := render(raw)

	n := New(Config{})
	n.Feed(RoleAssistant, raw, t0)

	if got := render(raw); got != want {
		t.Fatalf("normalizer tap altered rendering:\n%q\nvs\n%q", got, want)
	}
}

func TestClean(t *testing.T) {
	got := Clean("│ ● Result:   done │")
	if got != "Result: done" {
		t.Fatalf("Clean() = %q, want %q", got, "Result: done")
	}
}
