// Package sanitizer normalizes citizen questions and blocks prompt-injection attempts.
package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	MinQueryRunes = 3
	MaxQueryRunes = 500
)

// Result is the outcome of sanitizing one raw query
type Result struct {
	Query   string `json:"query"`
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

type injectionPattern struct {
	re     *regexp.Regexp
	reason string
}

// Checked in order; the first match decides the reason.
var injectionPatterns = []injectionPattern{
	{
		re:     regexp.MustCompile(`(?i)\b(ignore|forget|disregard|override)\b.{0,40}\b(previous|prior|above|earlier|all|your)\b.{0,20}\b(instructions?|prompts?|rules|directions|context)\b`),
		reason: "Query attempts to override system instructions",
	},
	{
		re:     regexp.MustCompile(`(?i)\b(you\s+are\s+now|from\s+now\s+on\s+you\s+are|act\s+as\s+(an?\s+)?|pretend\s+(to\s+be|you\s+are)|roleplay\s+as)\b`),
		reason: "Query attempts to reassign the assistant's role",
	},
	{
		re:     regexp.MustCompile(`(?i)(^|\n)\s*(system|assistant|developer)\s*:|<\|im_(start|end)\|>|\[/?INST\]|<</?SYS>>`),
		reason: "Query contains conversation role markers",
	},
	{
		re:     regexp.MustCompile(`(?i)\b(reveal|show|print|repeat|output|display|tell\s+me)\b.{0,30}\b(system\s+prompt|hidden\s+prompt|initial\s+instructions|your\s+instructions|your\s+prompt)\b`),
		reason: "Query attempts to reveal the system prompt",
	},
	{
		re:     regexp.MustCompile(`(?i)\b(jailbreak|jail\s+break|DAN\s+mode|do\s+anything\s+now|developer\s+mode)\b`),
		reason: "Query contains a jailbreak attempt",
	},
}

var whitespaceRun = regexp.MustCompile(`\s{3,}`)

// Sanitize normalizes raw, enforces length bounds and scans for injection patterns.
// It has no side effects and is safe for concurrent use.
func Sanitize(raw string) Result {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, raw)

	cleaned = whitespaceRun.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	runes := []rune(cleaned)
	if len(runes) < MinQueryRunes {
		return Result{
			Query:   cleaned,
			Blocked: true,
			Reason:  "Query is too short; please describe what you want to know",
		}
	}
	if len(runes) > MaxQueryRunes {
		cleaned = strings.TrimSpace(string(runes[:MaxQueryRunes]))
	}

	for _, p := range injectionPatterns {
		if p.re.MatchString(cleaned) {
			return Result{Query: cleaned, Blocked: true, Reason: p.reason}
		}
	}

	return Result{Query: cleaned}
}
