// Package privacy detects and masks sensitive substrings in captured
// session text.
//
// Patterns carry a severity level (1-5) used to resolve overlapping
// matches: the higher-severity pattern wins, then the longer match,
// then the earlier start offset. Masking is deterministic and
// idempotent; replacement tokens are never themselves matchable.
package privacy

import (
	"log/slog"
	"regexp"
	"sort"
)

// Severity levels, lowest to highest.
const (
	SeverityLow      = 1
	SeverityMedium   = 2
	SeverityHigh     = 3
	SeverityCritical = 4
	SeverityMaximum  = 5
)

// SeverityName returns the display name for a severity level.
func SeverityName(level int) string {
	switch level {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	case SeverityMaximum:
		return "maximum"
	default:
		return "unknown"
	}
}

// Pattern is one privacy rule.
type Pattern struct {
	Name        string `yaml:"name"`
	Regex       string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Severity    int    `yaml:"severity"`
	Enabled     *bool  `yaml:"enabled,omitempty"`
}

func (p Pattern) enabled() bool {
	return p.Enabled == nil || *p.Enabled
}

type compiledPattern struct {
	Pattern
	re  *regexp.Regexp
	ord int // registration order, tie-break after severity
}

// Engine applies a fixed set of compiled patterns to text. An Engine is
// read-only after construction and safe for concurrent use.
type Engine struct {
	patterns []compiledPattern
}

// NewEngine compiles the given rules. A rule whose expression fails to
// compile is skipped and logged as a configuration error; compilation
// failure is never fatal.
func NewEngine(rules []Pattern) *Engine {
	compiled := make([]compiledPattern, 0, len(rules))

	for i, rule := range rules {
		if !rule.enabled() {
			continue
		}

		re, err := regexp.Compile(rule.Regex)
		if err != nil {
			slog.Default().Error(
				"invalid privacy pattern skipped",
				slog.String("component", "privacy"),
				slog.String("pattern.name", rule.Name),
				slog.String("error", err.Error()),
			)

			continue
		}

		if rule.Severity < SeverityLow || rule.Severity > SeverityMaximum {
			rule.Severity = SeverityMedium
		}

		compiled = append(compiled, compiledPattern{Pattern: rule, re: re, ord: i})
	}

	// Evaluation order: severity descending, then registration order.
	sort.SliceStable(compiled, func(i, j int) bool {
		if compiled[i].Severity != compiled[j].Severity {
			return compiled[i].Severity > compiled[j].Severity
		}

		return compiled[i].ord < compiled[j].ord
	})

	return &Engine{patterns: compiled}
}

// PatternCount returns the number of usable (compiled, enabled) patterns.
func (e *Engine) PatternCount() int {
	return len(e.patterns)
}

// match is one candidate span found during a scan. Spans index into the
// scanned text and never outlive the scan call.
type match struct {
	start, end int
	pat        *compiledPattern
}

// ScanAndMask scans text against all enabled patterns and returns the
// masked text together with the sorted set of detected pattern names.
// Overlapping matches are resolved by severity, then span length, then
// start offset; a claimed span blocks all lower-priority overlaps.
func (e *Engine) ScanAndMask(text string) (string, []string) {
	if text == "" {
		return text, nil
	}

	var candidates []match

	for i := range e.patterns {
		pat := &e.patterns[i]
		for _, loc := range pat.re.FindAllStringIndex(text, -1) {
			candidates = append(candidates, match{start: loc[0], end: loc[1], pat: pat})
		}
	}

	if len(candidates) == 0 {
		return text, nil
	}

	// Priority order for the greedy claim pass: severity desc, longer
	// span first, earlier start first, then registration order.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.pat.Severity != b.pat.Severity {
			return a.pat.Severity > b.pat.Severity
		}

		if la, lb := a.end-a.start, b.end-b.start; la != lb {
			return la > lb
		}

		if a.start != b.start {
			return a.start < b.start
		}

		return a.pat.ord < b.pat.ord
	})

	var winners []match

	for _, cand := range candidates {
		if overlapsAny(cand, winners) {
			continue
		}

		winners = append(winners, cand)
	}

	// Apply substitutions left to right.
	sort.Slice(winners, func(i, j int) bool { return winners[i].start < winners[j].start })

	var (
		out  []byte
		pos  int
		seen = map[string]bool{}
	)

	for _, w := range winners {
		out = append(out, text[pos:w.start]...)
		out = append(out, w.pat.Replacement...)
		pos = w.end
		seen[w.pat.Name] = true
	}

	out = append(out, text[pos:]...)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	sort.Strings(names)

	return string(out), names
}

func overlapsAny(cand match, claimed []match) bool {
	for _, c := range claimed {
		if cand.start < c.end && c.start < cand.end {
			return true
		}
	}

	return false
}

// Analysis summarizes how sensitive a piece of text is.
type Analysis struct {
	Level            string   `json:"level"`
	Score            int      `json:"score"`
	RequiresApproval bool     `json:"requiresApproval"`
	Detected         []string `json:"detectedPatterns"`
}

// Analyze scans text without masking it and reports the highest
// severity among the detected patterns.
func (e *Engine) Analyze(text string) Analysis {
	_, detected := e.ScanAndMask(text)
	if len(detected) == 0 {
		return Analysis{Level: "safe", Detected: []string{}}
	}

	maxSeverity := SeverityLow

	byName := map[string]int{}
	for i := range e.patterns {
		byName[e.patterns[i].Name] = e.patterns[i].Severity
	}

	for _, name := range detected {
		if sev := byName[name]; sev > maxSeverity {
			maxSeverity = sev
		}
	}

	return Analysis{
		Level:            SeverityName(maxSeverity),
		Score:            maxSeverity,
		RequiresApproval: maxSeverity >= SeverityHigh,
		Detected:         detected,
	}
}

// PatternInfo is a summary row for one loaded pattern.
type PatternInfo struct {
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Enabled  bool   `json:"enabled"`
}

// Summary lists the loaded patterns in evaluation order.
func (e *Engine) Summary() []PatternInfo {
	infos := make([]PatternInfo, 0, len(e.patterns))
	for i := range e.patterns {
		infos = append(infos, PatternInfo{
			Name:     e.patterns[i].Name,
			Severity: SeverityName(e.patterns[i].Severity),
			Enabled:  true,
		})
	}

	return infos
}
