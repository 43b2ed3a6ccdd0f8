// Package scanner finds variable references in free text, rewrites legacy
// reference syntaxes to {!@variables.Name}, and classifies opaque record ids.
package scanner

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/crmoraes/nga/internal/rules"
)

const canonicalReplacement = "{!@variables.$1}"

var (
	canonical = regexp.MustCompile(`\{!@variables\.([^}]+)\}`)

	// Order matters: {!$x} and {$!x} must be consumed before {$x} and {!x}.
	legacy = []*regexp.Regexp{
		regexp.MustCompile(`\{!\$([^}]+)\}`),
		regexp.MustCompile(`\{\$!([^}]+)\}`),
		regexp.MustCompile(`\{\$([^!}][^}]*)\}`),
		regexp.MustCompile(`\{!([^@}][^}]*)\}`),
	}
)

type rewrite struct {
	re          *regexp.Regexp
	replacement string
}

// Scanner is immutable and safe for concurrent use.
type Scanner struct {
	enabled  bool
	rewrites []rewrite
}

// New compiles the scanner for r. Custom patterns in r replace the built-in
// legacy syntaxes.
func New(r *rules.Rules) (*Scanner, error) {
	s := &Scanner{enabled: r.VariableConversionEnabled()}
	if len(r.VariableConversion.Patterns) == 0 {
		for _, re := range legacy {
			s.rewrites = append(s.rewrites, rewrite{re: re, replacement: canonicalReplacement})
		}
		return s, nil
	}
	for i, p := range r.VariableConversion.Patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("variable pattern %d: %w", i, err)
		}
		s.rewrites = append(s.rewrites, rewrite{re: re, replacement: p.Replacement})
	}
	return s, nil
}

// HasLegacy reports whether text contains any syntax the scanner would rewrite.
func (s *Scanner) HasLegacy(text string) bool {
	if !s.enabled {
		return false
	}
	for _, rw := range s.rewrites {
		if rw.re.MatchString(text) {
			return true
		}
	}
	return false
}

// Rewrite converts legacy references to the canonical form and returns the
// rewritten text along with the names it converted. Passes repeat until the
// text is stable, so Rewrite(Rewrite(x)) == Rewrite(x).
func (s *Scanner) Rewrite(text string) (string, []string) {
	if text == "" || !s.HasLegacy(text) {
		return text, nil
	}
	var names []string
	// A productive pass makes at least one legacy opening brace canonical, so
	// the brace count bounds the loop.
	limit := strings.Count(text, "{") + 1
	for pass := 0; pass < limit; pass++ {
		next := text
		for _, rw := range s.rewrites {
			for _, m := range rw.re.FindAllStringSubmatch(next, -1) {
				if len(m) > 1 {
					names = append(names, strings.TrimSpace(m[1]))
				}
			}
			next = rw.re.ReplaceAllString(next, rw.replacement)
		}
		if next == text {
			break
		}
		text = next
	}
	return text, names
}

// References returns the canonical variable names in text in order of first appearance.
func References(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range canonical.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Collector accumulates references and rewrites over one conversion. It is
// not safe for concurrent use.
type Collector struct {
	scanner   *Scanner
	refs      []string
	seen      map[string]bool
	rewritten map[string]bool
	// changed is set by any rewrite, including patterns without a capture group.
	changed bool
}

func (s *Scanner) NewCollector() *Collector {
	return &Collector{
		scanner:   s,
		seen:      make(map[string]bool),
		rewritten: make(map[string]bool),
	}
}

// Text rewrites text and records every variable it references.
func (c *Collector) Text(text string) string {
	out := c.Rewrite(text)
	for _, name := range References(out) {
		if !c.seen[name] {
			c.seen[name] = true
			c.refs = append(c.refs, name)
		}
	}
	return out
}

// Rewrite rewrites text without counting its references toward inclusion.
func (c *Collector) Rewrite(text string) string {
	out, names := c.scanner.Rewrite(text)
	if out != text {
		c.changed = true
	}
	for _, n := range names {
		if n != "" {
			c.rewritten[n] = true
		}
	}
	return out
}

// References returns the referenced names in first-seen order.
func (c *Collector) References() []string {
	return append([]string(nil), c.refs...)
}

// Rewritten returns the sorted names that were converted from legacy syntax.
func (c *Collector) Rewritten() []string {
	out := make([]string, 0, len(c.rewritten))
	for n := range c.rewritten {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (c *Collector) HasRewrites() bool {
	return c.changed || len(c.rewritten) > 0
}
