package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Extraction is the parsed answer to PreferenceSysPrompt.
type Extraction struct {
	OffTopic   bool
	Preference string
	Location   string
}

var (
	preferenceKeyRe = regexp.MustCompile(`(?i)\b(preference|location)\s*[=:]\s*`)
	fillerWords     = []string{"close to", "near to", "next to", "near", "around", "to", "in", "at", "by", "from"}
	noLocation      = map[string]bool{"": true, "none": true, "n/a": true, "na": true, "unknown": true, "not specified": true, "null": true}
)

func trimDecoration(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"'`*_ \t")
}

// ParsePreference reads "Preference = ..." and an optional "Location = ..."
// from the model answer. "False" marks the input as off topic. An answer
// without keys is taken as the preference itself.
func ParsePreference(text string) (Extraction, error) {
	cleaned := trimDecoration(strings.ReplaceAll(text, "**", ""))
	if cleaned == "" {
		return Extraction{}, fmt.Errorf("empty preference answer: %w", ErrMalformedOutput)
	}

	if strings.EqualFold(strings.TrimRight(cleaned, ".!"), "false") {
		return Extraction{OffTopic: true}, nil
	}

	var out Extraction
	matches := preferenceKeyRe.FindAllStringSubmatchIndex(cleaned, -1)
	if len(matches) == 0 {
		out.Preference = strings.Join(strings.Fields(cleaned), " ")
		return out, nil
	}

	for i, m := range matches {
		end := len(cleaned)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		key := strings.ToLower(cleaned[m[2]:m[3]])
		value := trimDecoration(strings.TrimRight(strings.TrimSpace(cleaned[m[1]:end]), ",;-"))

		switch key {
		case "preference":
			out.Preference = value
		case "location":
			out.Location = CleanLocation(value)
		}
	}

	if out.Preference == "" {
		return Extraction{}, fmt.Errorf("no preference in %q: %w", text, ErrMalformedOutput)
	}

	return out, nil
}

// CleanLocation strips leading filler words and placeholders such as "none".
func CleanLocation(location string) string {
	loc := strings.TrimRight(trimDecoration(location), ".,;!?")
	for {
		lower := strings.ToLower(loc)
		stripped := false
		for _, w := range fillerWords {
			if strings.HasPrefix(lower, w+" ") {
				loc = strings.TrimSpace(loc[len(w)+1:])
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}

	if noLocation[strings.ToLower(loc)] {
		return ""
	}

	return loc
}

type IntentKind int

const (
	IntentNeither IntentKind = iota
	IntentContinue
	IntentChangePreference
	IntentOrdinal
)

func (k IntentKind) String() string {
	switch k {
	case IntentContinue:
		return "continue"
	case IntentChangePreference:
		return "change_preference"
	case IntentOrdinal:
		return "ordinal"
	default:
		return "neither"
	}
}

type Intent struct {
	Kind    IntentKind
	Ordinal int
}

var intentTokens = map[string]IntentKind{
	"other":       IntentContinue,
	"others":      IntentContinue,
	"more":        IntentContinue,
	"continue":    IntentContinue,
	"yes":         IntentContinue,
	"preference":  IntentChangePreference,
	"preferences": IntentChangePreference,
	"neither":     IntentNeither,
}

// ParseIntent reads the answer to IntentPrompt. Anything that is not one of
// the expected words or a whole number yields IntentNeither together with
// ErrMalformedOutput.
func ParseIntent(text string) (Intent, error) {
	token := strings.ToLower(strings.TrimRight(trimDecoration(text), ".!?"))

	if kind, ok := intentTokens[token]; ok {
		return Intent{Kind: kind}, nil
	}

	if n, err := strconv.Atoi(token); err == nil {
		return Intent{Kind: IntentOrdinal, Ordinal: n}, nil
	}

	return Intent{Kind: IntentNeither}, fmt.Errorf("unexpected intent %q: %w", text, ErrMalformedOutput)
}
