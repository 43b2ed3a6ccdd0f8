// Package naming turns free-form labels and API names into the identifiers
// the agent script accepts.
package naming

import (
	"regexp"
	"strings"
	"unicode"
)

const maxDeveloperNameLen = 80

var (
	tagMarker     = regexp.MustCompile(`#[A-Za-z]+#`)
	identifier    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	topicKeyShape = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// SplitLines splits s on any line break convention. Trailing blanks are
// trimmed and blank lines dropped.
func SplitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(lineBreaks.Replace(s), "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// FirstNonEmpty returns the first value that is not blank, or "" when all are.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// collapse replaces every run of characters outside [A-Za-z0-9] with a single
// underscore and trims underscores from both ends.
func collapse(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// DeveloperName derives the upper-case developer name, at most 80 characters
// and never ending in an underscore.
func DeveloperName(s string) string {
	name := strings.ToUpper(collapse(s))
	if len(name) > maxDeveloperNameLen {
		name = name[:maxDeveloperNameLen]
	}
	return strings.TrimRight(name, "_")
}

// TopicKey derives a key matching ^[a-z][a-z0-9_]*$.
func TopicKey(s string) string {
	key := strings.ToLower(collapse(s))
	if key == "" {
		return "unnamed"
	}
	if key[0] >= '0' && key[0] <= '9' {
		key = "topic_" + key
	}
	return key
}

// ValidTopicKey reports whether key is a well-formed topic key.
func ValidTopicKey(key string) bool {
	return topicKeyShape.MatchString(key)
}

// ActionName sanitizes an action name, keeping its case.
func ActionName(s string) string {
	name := collapse(s)
	if name == "" {
		return "action"
	}
	return name
}

// StripParamPrefix removes the "Input:" or "Output:" marker vendor schemas put
// on property keys.
func StripParamPrefix(key string) string {
	key = strings.TrimPrefix(key, "Input:")
	return strings.TrimPrefix(key, "Output:")
}

// VariableName keeps only [A-Za-z0-9_] from a property key.
func VariableName(key string) string {
	key = StripParamPrefix(key)
	var b strings.Builder
	for _, r := range key {
		if r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsIdentifier reports whether s can name a variable.
func IsIdentifier(s string) bool {
	return identifier.MatchString(s)
}

// CleanDescription strips #Tag# markers and normalizes whitespace.
func CleanDescription(s string) string {
	s = tagMarker.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// TitleCase turns snake_case into Title Case.
func TitleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
