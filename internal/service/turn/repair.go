package turn

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxReplyLength is the hard cap on a reply, in characters.
const MaxReplyLength = 150

// truncateLength leaves a small margin below the cap when cutting long text.
const truncateLength = 148

// Canonical replies. Both already satisfy the output contract.
const (
	// FallbackReply replaces a blank or missing candidate.
	FallbackReply = "The air stills. 1. Wait 2. Move on"
	// UpstreamFallbackReply is returned when the completion call fails.
	UpstreamFallbackReply = "The GM falls silent. 1. Wait 2. Wander away"
)

const (
	lengthSuffix = " 1. Continue 2. Retreat"
	optionSuffix = "\n\n1. Proceed\n2. Step back"
)

var (
	markupPattern     = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	// A numbered option: digit, period, whitespace, then option text.
	optionPattern = regexp.MustCompile(`\d\.\s+\S`)
)

// Repair brings an untrusted candidate reply into the output contract:
// at most MaxReplyLength characters, at least two numbered options, no
// leading markup. It is deterministic and idempotent.
func Repair(candidate string) string {
	text := strings.TrimSpace(candidate)
	if text == "" {
		return FallbackReply
	}

	text = StripMarkup(text)
	if text == "" {
		return FallbackReply
	}

	text = EnforceLength(text)
	return EnforceOptions(text)
}

// StripMarkup removes tag sequences and collapses whitespace when the text
// starts with a markup-opening character and holds at least one tag. Other
// text is returned trimmed.
func StripMarkup(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "<") || !markupPattern.MatchString(text) {
		return text
	}
	text = markupPattern.ReplaceAllString(text, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// EnforceLength cuts text longer than MaxReplyLength at a word boundary.
// A cut that loses every numbered option gets the short two-option suffix,
// with the body shortened so the suffix still fits.
func EnforceLength(text string) string {
	if utf8.RuneCountInString(text) <= MaxReplyLength {
		return text
	}

	cut := truncateAtWord(text, truncateLength)
	if HasOption(cut) {
		return cut
	}
	body := truncateAtWord(text, MaxReplyLength-utf8.RuneCountInString(lengthSuffix))
	return body + lengthSuffix
}

// EnforceOptions appends the two default options when text carries fewer
// than two, shortening the body first so the result stays within the cap.
func EnforceOptions(text string) string {
	if CountOptions(text) >= 2 {
		return text
	}
	body := truncateAtWord(text, MaxReplyLength-utf8.RuneCountInString(optionSuffix))
	return body + optionSuffix
}

// HasOption reports whether text contains a numbered option.
func HasOption(text string) bool {
	return optionPattern.MatchString(text)
}

// CountOptions counts numbered options in text.
func CountOptions(text string) int {
	return len(optionPattern.FindAllStringIndex(text, -1))
}

// truncateAtWord returns at most limit characters of text, cut at the last
// whitespace when there is one, with trailing whitespace removed.
func truncateAtWord(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return strings.TrimSpace(text)
	}
	if unicode.IsSpace(runes[limit]) {
		return strings.TrimSpace(string(runes[:limit]))
	}

	head := runes[:limit]
	for i := len(head) - 1; i > 0; i-- {
		if unicode.IsSpace(head[i]) {
			return strings.TrimSpace(string(head[:i]))
		}
	}
	// One long word; a hard cut is the only option.
	return string(head)
}
