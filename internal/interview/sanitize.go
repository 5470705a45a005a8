package interview

import (
	"regexp"
	"strings"
)

// fallbackAnswer is returned when nothing usable is left after cleaning.
const fallbackAnswer = "Could you elaborate on that?"

var (
	// Speaker labels the model tends to prepend to its own output.
	labelPrefix = regexp.MustCompile(`(?i)^(?:\*\*)?(?:assistant|ai|interviewer|user|candidate)(?:\*\*)?\s*(?::\s*|\s+-\s+)`)
	labelLine   = regexp.MustCompile(`(?i)^\s*(?:\*\*)?(?:assistant|ai|interviewer|user|candidate)(?:\*\*)?\s*(?::|\s-\s)`)

	sentenceEnd = regexp.MustCompile(`([.!?])\s`)
	emphasis    = regexp.MustCompile(`[*_]+`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Sanitize cleans raw model output into a single spoken-friendly sentence:
// speaker-label prefixes are stripped, leftover labeled dialogue lines are
// dropped, markdown emphasis is removed, the text is cut at the first
// sentence boundary and at the first question mark when several occur, and
// whitespace collapsed. The result is never empty; inputs that clean down
// to fewer than 3 characters yield a fixed fallback.
func Sanitize(raw string) string {
	lines := strings.Split(raw, "\n")

	kept := lines[:0]
	for _, line := range lines {
		line = labelPrefix.ReplaceAllString(strings.TrimSpace(line), "")
		if labelLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	text := strings.Join(kept, "\n")

	// Emphasis goes first: markers sitting on a sentence boundary
	// ("Wait*.* Done") must not hide it from the cut below, or
	// Sanitize(Sanitize(x)) would cut further than Sanitize(x).
	text = emphasis.ReplaceAllString(text, "")

	// Cut at the first terminated sentence, keeping the terminator.
	if loc := sentenceEnd.FindStringIndex(text); loc != nil {
		text = text[:loc[0]+1]
	}

	// A single question only.
	if strings.Count(text, "?") > 1 {
		text = text[:strings.Index(text, "?")+1]
	}

	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))

	// Collapsing whitespace can surface a label again ("AI :" across a
	// line break); strip until stable so Sanitize(Sanitize(x)) == Sanitize(x).
	for {
		stripped := labelPrefix.ReplaceAllString(text, "")
		if stripped == text {
			break
		}
		text = strings.TrimSpace(stripped)
	}

	if len([]rune(text)) < 3 {
		return fallbackAnswer
	}

	return text
}
