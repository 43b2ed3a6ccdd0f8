// Package rules holds the conversion rule configuration: default strings,
// templates, security rules, type tables and variable patterns.
//
// A Rules value is read-only once built and is shared across conversions.
package rules

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

type Rules struct {
	Version            string             `yaml:"version"`
	VariableConversion VariableConversion `yaml:"variable_conversion"`
	Instructions       InstructionFormat  `yaml:"instructions_format"`
	TypeMappings       TypeMappings       `yaml:"type_mappings"`
	Templates          Templates          `yaml:"templates"`
	SecurityRules      []string           `yaml:"security_rules"`
	System             SystemDefaults     `yaml:"system"`
	Language           LanguageDefaults   `yaml:"language"`
	Connection         ConnectionDefaults `yaml:"connection"`
	Review             ReviewRules        `yaml:"review"`
}

type VariableConversion struct {
	Enabled *bool `yaml:"enabled"`
	// Patterns replace the built-in legacy syntaxes when set.
	Patterns     []VariablePattern `yaml:"patterns"`
	AlertMessage string            `yaml:"alert_message"`
	StatusSuffix string            `yaml:"status_suffix"`
}

type VariablePattern struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Description string `yaml:"description"`
}

type InstructionFormat struct {
	Indicator  string `yaml:"indicator"`
	LinePrefix string `yaml:"line_prefix"`
	Fallback   string `yaml:"fallback"`
}

type TypeMappings struct {
	Primitive map[string]string `yaml:"primitive"`
	// Complex is consulted after Primitive. Its "array" entry is a list
	// format such as "list[{itemType}]".
	Complex        map[string]string `yaml:"complex"`
	Default        string            `yaml:"default"`
	RecordInfoType string            `yaml:"record_info_type"`
	TextType       string            `yaml:"text_type"`
	NumberType     string            `yaml:"number_type"`
	BooleanType    string            `yaml:"boolean_type"`
	RichTextType   string            `yaml:"rich_text_type"`
}

type TopicTemplate struct {
	Label                string   `yaml:"label"`
	Description          string   `yaml:"description"`
	Instructions         []string `yaml:"instructions"`
	IncludeSecurityRules *bool    `yaml:"include_security_rules"`
}

type ReferenceTemplate struct {
	Name        string `yaml:"name"`
	Target      string `yaml:"target"`
	Description string `yaml:"description"`
}

type Templates struct {
	TopicSelector     TopicTemplate     `yaml:"topic_selector"`
	Escalation        TopicTemplate     `yaml:"escalation"`
	OffTopic          TopicTemplate     `yaml:"off_topic"`
	AmbiguousQuestion TopicTemplate     `yaml:"ambiguous_question"`
	EscalateReference ReferenceTemplate `yaml:"escalate_reference"`
}

type SystemDefaults struct {
	DefaultRole string `yaml:"default_role"`
	// Tones maps an upper-case tone name to its persona sentence.
	Tones              map[string]string `yaml:"tones"`
	DefaultTone        string            `yaml:"default_tone"`
	WelcomeTemplate    string            `yaml:"welcome_template"`
	AssistantLabel     string            `yaml:"assistant_label"`
	ErrorMessage       string            `yaml:"error_message"`
	AgentUserTemplate  string            `yaml:"agent_user_template"`
	AgentUserDefaultID string            `yaml:"agent_user_default_id"`
	VendorAgentLabel   string            `yaml:"vendor_agent_label"`
	CustomAgentLabel   string            `yaml:"custom_agent_label"`
	DeveloperName      string            `yaml:"developer_name"`
	Description        string            `yaml:"description"`
}

type LanguageDefaults struct {
	DefaultLocale        string `yaml:"default_locale"`
	AllAdditionalLocales *bool  `yaml:"all_additional_locales"`
}

type ConnectionDefaults struct {
	AdaptiveResponseAllowed *bool `yaml:"adaptive_response_allowed"`
}

type ReviewRules struct {
	// FlaggedKinds lists invocation kinds whose opaque target names need manual review.
	FlaggedKinds []string `yaml:"flagged_kinds"`
}

// Load reads a rules file. JSON is accepted as well since it parses as YAML.
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

// Parse overlays data on the built-in defaults and validates the result. Both
// the flat layout and the nested layout of older rules files are accepted.
func Parse(data []byte) (*Rules, error) {
	r := Default()
	if err := decode(data, r); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	// Defaults are keyed upper case; keys written any other way come from the file and win.
	tones := make(map[string]string, len(r.System.Tones))
	for k, v := range r.System.Tones {
		if k == strings.ToUpper(k) {
			tones[k] = v
		}
	}
	for k, v := range r.System.Tones {
		if k != strings.ToUpper(k) {
			tones[strings.ToUpper(k)] = v
		}
	}
	r.System.Tones = tones
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks that every custom pattern compiles and that required strings are set.
func (r *Rules) Validate() error {
	for i, p := range r.VariableConversion.Patterns {
		if p.Pattern == "" {
			return fmt.Errorf("variable_conversion.patterns[%d]: pattern is empty", i)
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return fmt.Errorf("variable_conversion.patterns[%d]: %w", i, err)
		}
	}
	required := []struct{ field, value string }{
		{"instructions_format.indicator", r.Instructions.Indicator},
		{"instructions_format.line_prefix", r.Instructions.LinePrefix},
		{"type_mappings.default", r.TypeMappings.Default},
		{"type_mappings.record_info_type", r.TypeMappings.RecordInfoType},
		{"system.default_tone", r.System.DefaultTone},
		{"language.default_locale", r.Language.DefaultLocale},
	}
	for _, req := range required {
		if strings.TrimSpace(req.value) == "" {
			return fmt.Errorf("%s must not be empty", req.field)
		}
	}
	if _, ok := r.System.Tones[strings.ToUpper(r.System.DefaultTone)]; !ok {
		return fmt.Errorf("system.default_tone %q has no sentence in system.tones", r.System.DefaultTone)
	}
	return nil
}

// VariableConversionEnabled defaults to true.
func (r *Rules) VariableConversionEnabled() bool {
	return boolOr(r.VariableConversion.Enabled, true)
}

func (r *Rules) AllAdditionalLocales() bool {
	return boolOr(r.Language.AllAdditionalLocales, false)
}

func (r *Rules) AdaptiveResponseAllowed() bool {
	return boolOr(r.Connection.AdaptiveResponseAllowed, true)
}

// IncludesSecurityRules defaults to true.
func (t TopicTemplate) IncludesSecurityRules() bool {
	return boolOr(t.IncludeSecurityRules, true)
}

// ToneSentence returns the persona sentence for tone, using the default tone
// when the value is absent or unknown.
func (r *Rules) ToneSentence(tone string) string {
	if s, ok := r.System.Tones[strings.ToUpper(strings.TrimSpace(tone))]; ok {
		return s
	}
	return r.System.Tones[strings.ToUpper(r.System.DefaultTone)]
}

// IsFlaggedKind reports whether an invocation kind is subject to target review.
func (r *Rules) IsFlaggedKind(kind string) bool {
	for _, k := range r.Review.FlaggedKinds {
		if strings.EqualFold(k, kind) {
			return true
		}
	}
	return false
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
