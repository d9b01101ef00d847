package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scribe-dev/scribe/internal/testutil"
)

func TestPatternsList_ShowsBuiltins(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, buf := testWriter()
	cmd := newPatternsListCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetContext(out.WithContext(t.Context()))

	if err := cmd.Execute(); err != nil {
		t.Fatalf("patterns list should succeed: %v", err)
	}

	got := buf.String()

	for _, want := range []string{"ANTHROPIC_API_KEY", "AWS_ACCESS_KEY_ID", "EMAIL", "maximum"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPatternsList_Golden(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, buf := testWriter()
	cmd := newPatternsListCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetContext(out.WithContext(t.Context()))

	if err := cmd.Execute(); err != nil {
		t.Fatalf("patterns list should succeed: %v", err)
	}

	testutil.AssertGolden(t, buf.String(), "patterns_list.golden")
}

func TestPatternsList_UserRulesOverride(t *testing.T) {
	rules := filepath.Join(t.TempDir(), "privacy.yaml")
	content := `patterns:
  - name: ticket_id
    pattern: 'PROJ-\d+'
    replacement: '[TICKET]'
    severity: 1
`

	if err := os.WriteFile(rules, []byte(content), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	out, buf := testWriter()
	cmd := newPatternsListCmd()
	cmd.SetArgs([]string{"--rules", rules})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetContext(out.WithContext(t.Context()))

	if err := cmd.Execute(); err != nil {
		t.Fatalf("patterns list should succeed: %v", err)
	}

	if !strings.Contains(buf.String(), "ticket_id") {
		t.Errorf("output missing user pattern:\n%s", buf.String())
	}
}

func TestPatternsAnalyze_DetectsSecrets(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, buf := testWriter()
	cmd := newPatternsAnalyzeCmd()
	cmd.SetArgs([]string{})
	cmd.SetIn(strings.NewReader("export ANTHROPIC_API_KEY=sk-ant-api03-" + strings.Repeat("a", 40)))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetContext(out.WithContext(t.Context()))

	if err := cmd.Execute(); err != nil {
		t.Fatalf("patterns analyze should succeed: %v", err)
	}

	got := buf.String()

	if !strings.Contains(got, "Level:    maximum") {
		t.Errorf("output missing maximum level:\n%s", got)
	}

	if !strings.Contains(got, "ANTHROPIC_API_KEY") {
		t.Errorf("output missing detected pattern:\n%s", got)
	}
}

func TestPatternsAnalyze_SafeText(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, buf := testWriter()
	cmd := newPatternsAnalyzeCmd()
	cmd.SetArgs([]string{})
	cmd.SetIn(strings.NewReader("just a normal sentence"))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetContext(out.WithContext(t.Context()))

	if err := cmd.Execute(); err != nil {
		t.Fatalf("patterns analyze should succeed: %v", err)
	}

	if !strings.Contains(buf.String(), "Level:    safe") {
		t.Errorf("output = %q, want safe level", buf.String())
	}
}
