package scanner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/crmoraes/nga/internal/rules"
)

func newScanner(t *testing.T) *Scanner {
	t.Helper()
	s, err := New(rules.Default())
	require.NoError(t, err)
	return s
}

func TestRewrite(t *testing.T) {
	s := newScanner(t)
	tests := []struct {
		name      string
		in        string
		want      string
		rewritten []string
	}{
		{"exclaim dollar", "{!$MyVar}", "{!@variables.MyVar}", []string{"MyVar"}},
		{"dollar exclaim", "{$!Foo}", "{!@variables.Foo}", []string{"Foo"}},
		{"dollar only", "{$MyVar}", "{!@variables.MyVar}", []string{"MyVar"}},
		{"exclaim only", "{!MyVar}", "{!@variables.MyVar}", []string{"MyVar"}},
		{"mixed text", "Hello {!$Name}, welcome!", "Hello {!@variables.Name}, welcome!", []string{"Name"}},
		{"canonical untouched", "Hi {!@variables.Name}", "Hi {!@variables.Name}", nil},
		{"plain text", "no variables here", "no variables here", nil},
		{"empty", "", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, names := s.Rewrite(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.rewritten, names)
		})
	}
}

func TestHasLegacy(t *testing.T) {
	s := newScanner(t)
	assert.True(t, s.HasLegacy("text {!$MyVar} more"))
	assert.True(t, s.HasLegacy("{$MyVar}"))
	assert.False(t, s.HasLegacy("{!@variables.MyVar}"))
	assert.False(t, s.HasLegacy("plain text"))
}

func TestDisabledConversionLeavesText(t *testing.T) {
	r := rules.Default()
	off := false
	r.VariableConversion.Enabled = &off
	s, err := New(r)
	require.NoError(t, err)

	got, names := s.Rewrite("{$Foo}")
	assert.Equal(t, "{$Foo}", got)
	assert.Empty(t, names)
	assert.False(t, s.HasLegacy("{$Foo}"))
}

func TestCustomPatternsReplaceBuiltins(t *testing.T) {
	r := rules.Default()
	r.VariableConversion.Patterns = []rules.VariablePattern{
		{Pattern: `\[\[([A-Za-z_]+)\]\]`, Replacement: "{!@variables.$1}"},
	}
	s, err := New(r)
	require.NoError(t, err)

	got, names := s.Rewrite("Use [[Account]] and {$Other}")
	assert.Equal(t, "Use {!@variables.Account} and {$Other}", got)
	assert.Equal(t, []string{"Account"}, names)
}

func TestGrouplessPatternCountsAsRewrite(t *testing.T) {
	r := rules.Default()
	r.VariableConversion.Patterns = []rules.VariablePattern{
		{Pattern: `\{\$Foo\}`, Replacement: "{!@variables.Foo}"},
	}
	s, err := New(r)
	require.NoError(t, err)

	c := s.NewCollector()
	assert.False(t, c.HasRewrites())

	out := c.Text("Hello {$Foo}")
	assert.Equal(t, "Hello {!@variables.Foo}", out)
	assert.Empty(t, c.Rewritten())
	assert.True(t, c.HasRewrites())
	assert.Equal(t, []string{"Foo"}, c.References())
}

func TestCollectorWithoutLegacyText(t *testing.T) {
	c := newScanner(t).NewCollector()
	c.Text("Hi {!@variables.Name}")
	c.Rewrite("plain")
	assert.False(t, c.HasRewrites())
}

func TestReferences(t *testing.T) {
	refs := References("{!@variables.B} then {!@variables.A} and {!@variables.B} again")
	assert.Equal(t, []string{"B", "A"}, refs)
	assert.Empty(t, References("nothing"))
}

func TestCollector(t *testing.T) {
	c := newScanner(t).NewCollector()

	out := c.Text("Greet {$!Foo} and {!@variables.Bar}")
	assert.Equal(t, "Greet {!@variables.Foo} and {!@variables.Bar}", out)

	c.Rewrite("only a description mentioning {!Baz}")
	c.Text("{!$Foo} again")

	assert.Equal(t, []string{"Foo", "Bar"}, c.References())
	assert.Equal(t, []string{"Baz", "Foo"}, c.Rewritten())
	assert.True(t, c.HasRewrites())
}

func TestRewriteIsIdempotent(t *testing.T) {
	s := newScanner(t)
	pieces := []string{"{", "}", "!", "$", "@", "a", "B", "_", ".", " ", "variables", "@variables.", "{!$", "{$!"}
	rapid.Check(t, func(rt *rapid.T) {
		parts := rapid.SliceOfN(rapid.SampledFrom(pieces), 0, 24).Draw(rt, "parts")
		text := strings.Join(parts, "")

		once, _ := s.Rewrite(text)
		twice, names := s.Rewrite(once)
		if once != twice {
			rt.Fatalf("rewrite not idempotent: %q -> %q -> %q", text, once, twice)
		}
		if len(names) != 0 {
			rt.Fatalf("second rewrite reported names %v for %q", names, once)
		}
	})
}

func TestRewriteNeverTouchesCanonicalText(t *testing.T) {
	s := newScanner(t)
	rapid.Check(t, func(rt *rapid.T) {
		name := rapid.StringMatching(`[A-Za-z][A-Za-z0-9_]{0,12}`).Draw(rt, "name")
		text := "x {!@variables." + name + "} y"
		got, _ := s.Rewrite(text)
		if got != text {
			rt.Fatalf("canonical text changed: %q -> %q", text, got)
		}
	})
}
