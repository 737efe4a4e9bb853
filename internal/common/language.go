package common

import "unicode"

// LanguageMixed tags text where the target script is present but not dominant
const LanguageMixed = "mixed"

// Language ratio thresholds over non-whitespace runes
const (
	DominantScriptRatio = 0.5
	MixedScriptRatio    = 0.1
)

var scriptTables = map[string]*unicode.RangeTable{
	"kn": unicode.Kannada,
	"hi": unicode.Devanagari,
	"ta": unicode.Tamil,
	"te": unicode.Telugu,
}

// SupportedScript reports whether a target language has a script table
func SupportedScript(lang string) bool {
	_, ok := scriptTables[lang]
	return ok
}

// ScriptRatio returns the share of non-whitespace runes written in the target language's script
func ScriptRatio(text, target string) float64 {
	table, ok := scriptTables[target]
	if !ok {
		return 0
	}

	total, inScript := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.Is(table, r) {
			inScript++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(inScript) / float64(total)
}

// ClassifyLanguage tags text as target (dominant script), mixed, or fallback
func ClassifyLanguage(text, target, fallback string) string {
	ratio := ScriptRatio(text, target)
	switch {
	case ratio > DominantScriptRatio:
		return target
	case ratio > MixedScriptRatio:
		return LanguageMixed
	default:
		return fallback
	}
}
