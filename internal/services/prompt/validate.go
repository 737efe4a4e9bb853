package prompt

import (
	"regexp"
	"strings"
)

// Issue kinds reported by Validate
const (
	IssueCertainty  = "certainty"
	IssueNoCitation = "no_citation"
	IssueNoDisclaim = "no_disclaimer"
)

// ValidationIssue is a quality problem found in a generated answer
type ValidationIssue struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

var certaintyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bguarantee(d|s)?\b`),
	regexp.MustCompile(`(?i)\b(definitely|certainly|surely)\s+(be\s+)?(eligible|get|receive|qualify)`),
	regexp.MustCompile(`(?i)\byou\s+will\s+(definitely\s+)?(receive|get)\b`),
	regexp.MustCompile(`(?i)\b100\s*%\s*(sure|certain|eligible)`),
	regexp.MustCompile(`(?i)\bno\s+doubt\b`),
}

var disclaimerMarkers = []string{
	"verify", "confirm", "official", "check with", "nearest office",
	"ಪರಿಶೀಲಿಸಿ", "सत्यापित", "சரிபார்", "ధృవీకరించ",
}

// Validate flags certainty phrases, a missing [n] marker and a missing
// verification note. Issues are advisory.
func (b *Builder) Validate(response string) []ValidationIssue {
	var issues []ValidationIssue

	for _, p := range certaintyPatterns {
		if m := p.FindString(response); m != "" {
			issues = append(issues, ValidationIssue{Kind: IssueCertainty, Detail: m})
			break
		}
	}

	if !citationMarker.MatchString(response) {
		issues = append(issues, ValidationIssue{Kind: IssueNoCitation, Detail: "answer cites no source"})
	}

	lower := strings.ToLower(response)
	found := false
	for _, marker := range disclaimerMarkers {
		if strings.Contains(lower, marker) {
			found = true
			break
		}
	}
	if !found {
		issues = append(issues, ValidationIssue{Kind: IssueNoDisclaim, Detail: "answer has no verification note"})
	}

	for _, issue := range issues {
		b.logger.Warn().Str("kind", issue.Kind).Str("detail", issue.Detail).Msg("Response validation issue")
	}
	return issues
}
