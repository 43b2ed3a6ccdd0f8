package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	r := Default()
	require.NoError(t, r.Validate())
	assert.Len(t, r.SecurityRules, 11)
	assert.True(t, r.VariableConversionEnabled())
	assert.True(t, r.AdaptiveResponseAllowed())
	assert.False(t, r.AllAdditionalLocales())
	assert.True(t, r.Templates.OffTopic.IncludesSecurityRules())
}

func TestDefaultReturnsIndependentCopies(t *testing.T) {
	a := Default()
	a.SecurityRules[0] = "changed"
	a.System.Tones["CASUAL"] = "changed"

	b := Default()
	assert.Equal(t, DefaultSecurityRules[0], b.SecurityRules[0])
	assert.Equal(t, "Maintain a casual and friendly tone.", b.System.Tones["CASUAL"])
}

func TestToneSentence(t *testing.T) {
	r := Default()
	tests := []struct {
		tone string
		want string
	}{
		{"CASUAL", "Maintain a casual and friendly tone."},
		{"formal", "Maintain a formal and professional tone."},
		{"NEUTRAL", "Maintain a neutral and balanced tone."},
		{"", "Maintain a neutral and balanced tone."},
		{"SARCASTIC", "Maintain a neutral and balanced tone."},
	}
	for _, tt := range tests {
		t.Run(tt.tone, func(t *testing.T) {
			assert.Equal(t, tt.want, r.ToneSentence(tt.tone))
		})
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	data := []byte(`
security_rules:
  - Only one rule.
system:
  tones:
    casual: "Keep it light."
  error_message: "Oops."
connection:
  adaptive_response_allowed: false
templates:
  off_topic:
    include_security_rules: false
`)
	r, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Only one rule."}, r.SecurityRules)
	assert.Equal(t, "Keep it light.", r.ToneSentence("CASUAL"))
	assert.Equal(t, "Maintain a formal and professional tone.", r.ToneSentence("FORMAL"))
	assert.Equal(t, "Oops.", r.System.ErrorMessage)
	assert.False(t, r.AdaptiveResponseAllowed())
	assert.False(t, r.Templates.OffTopic.IncludesSecurityRules())
	assert.True(t, r.Templates.AmbiguousQuestion.IncludesSecurityRules())
	assert.Equal(t, "Off Topic", r.Templates.OffTopic.Label)
	assert.Equal(t, "en_US", r.Language.DefaultLocale)
}

func TestParseNestedLayout(t *testing.T) {
	data := []byte(`
version: "1.0"
variable_conversion:
  enabled: true
  alert_message: "Converted."
output_format:
  indentation: {base: 4, nested: 8}
  reasoning:
    instructions_format:
      indicator: "=>"
      line_prefix: ">"
target_format:
  syntax: nga
type_mappings:
  primitive: {string: string, integer: number}
  complex: {array: "list[{itemType}]", date: string}
  default: object
templates:
  topic_selector:
    label: Router
    reasoning:
      instructions: "Route carefully."
      actions: {go_to_help: "@topic.help"}
  escalation:
    reasoning:
      instructions: "Escalate when asked.\nOtherwise keep going."
  off_topic:
    include_security_rules: false
    base_instructions: "Stay on topic."
    reasoning:
      instructions: "ignored while base_instructions is set"
security_rules:
  default_rules:
    - Rule one.
    - Rule two.
connection:
  fields:
    adaptive_response_allowed: {default: false}
system:
  fields:
    instructions: {default: "You are a helper."}
    messages:
      fields:
        welcome: {default: "Welcome!"}
        error: {default: "Something broke."}
language:
  fields:
    default_locale: {default: de_DE}
    all_additional_locales: {default: true}
`)
	r, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "1.0", r.Version)
	assert.Equal(t, "Converted.", r.VariableConversion.AlertMessage)
	assert.Equal(t, "=>", r.Instructions.Indicator)
	assert.Equal(t, ">", r.Instructions.LinePrefix)
	assert.Equal(t, "list[{itemType}]", r.TypeMappings.Complex["array"])
	assert.Equal(t, "string", r.TypeMappings.Complex["date"])
	assert.Equal(t, "lightning__recordInfoType", r.TypeMappings.RecordInfoType)

	assert.Equal(t, "Router", r.Templates.TopicSelector.Label)
	assert.Equal(t, []string{"Route carefully."}, r.Templates.TopicSelector.Instructions)
	assert.Equal(t, []string{"Escalate when asked.", "Otherwise keep going."}, r.Templates.Escalation.Instructions)
	assert.Equal(t, "Escalation", r.Templates.Escalation.Label)
	assert.Equal(t, []string{"Stay on topic."}, r.Templates.OffTopic.Instructions)
	assert.False(t, r.Templates.OffTopic.IncludesSecurityRules())
	assert.Equal(t, Default().Templates.AmbiguousQuestion.Instructions, r.Templates.AmbiguousQuestion.Instructions)

	assert.Equal(t, []string{"Rule one.", "Rule two."}, r.SecurityRules)
	assert.False(t, r.AdaptiveResponseAllowed())
	assert.Equal(t, "You are a helper.", r.System.DefaultRole)
	assert.Equal(t, "Welcome!", r.System.WelcomeTemplate)
	assert.Equal(t, "Something broke.", r.System.ErrorMessage)
	assert.Equal(t, "de_DE", r.Language.DefaultLocale)
	assert.True(t, r.AllAdditionalLocales())
}

func TestParseSecurityRulesForms(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{"list", `{"security_rules": ["A."]}`, []string{"A."}},
		{"mapping", `{"security_rules": {"default_rules": ["B.", "C."]}}`, []string{"B.", "C."}},
		{"mapping without rules", `{"security_rules": {}}`, DefaultSecurityRules},
		{"absent", `{}`, DefaultSecurityRules},
		{"empty document", ``, DefaultSecurityRules},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.SecurityRules)
		})
	}
}

func TestParseAcceptsJSON(t *testing.T) {
	r, err := Parse([]byte(`{"language": {"default_locale": "fr_FR"}, "review": {"flagged_kinds": ["flow", "apex"]}}`))
	require.NoError(t, err)
	assert.Equal(t, "fr_FR", r.Language.DefaultLocale)
	assert.True(t, r.IsFlaggedKind("APEX"))
	assert.False(t, r.IsFlaggedKind("standardInvocableAction"))
}

func TestParseRejectsBadPattern(t *testing.T) {
	_, err := Parse([]byte(`
variable_conversion:
  patterns:
    - pattern: "\\{("
      replacement: "x"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variable_conversion.patterns[0]")
}

func TestParseRejectsEmptyRequiredField(t *testing.T) {
	_, err := Parse([]byte(`instructions_format: {indicator: ""}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instructions_format.indicator")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"2\"\n"), 0644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2", r.Version)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
