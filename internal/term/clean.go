package term

import (
	"regexp"
	"strings"
)

var (
	decorRe      = regexp.MustCompile(`[╭─╮│╰╯┐└┘├┤┬┴┼⎿⧉✻●•▸▹⬤]`)
	multiSpaceRe = regexp.MustCompile(`[ \t]{2,}`)
)

// Clean strips box-drawing and bullet glyphs that interactive CLIs use
// as decoration and collapses the padding they leave behind. Applied to
// assembled turn text, never inside the normalizer, which must preserve
// content bytes exactly.
func Clean(text string) string {
	text = decorRe.ReplaceAllString(text, "")
	text = multiSpaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
