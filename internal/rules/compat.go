package rules

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crmoraes/nga/internal/naming"
)

// Rules files written for the older converter nest most settings under
// sections such as output_format and system.fields. nestedRules reads that
// layout so it can be overlaid on the flat one.
type nestedRules struct {
	OutputFormat struct {
		Reasoning struct {
			InstructionsFormat struct {
				Indicator  string `yaml:"indicator"`
				LinePrefix string `yaml:"line_prefix"`
			} `yaml:"instructions_format"`
		} `yaml:"reasoning"`
	} `yaml:"output_format"`
	Templates struct {
		TopicSelector     nestedTemplate `yaml:"topic_selector"`
		Escalation        nestedTemplate `yaml:"escalation"`
		OffTopic          nestedTemplate `yaml:"off_topic"`
		AmbiguousQuestion nestedTemplate `yaml:"ambiguous_question"`
	} `yaml:"templates"`
	System struct {
		Fields struct {
			Instructions fieldDefault[string] `yaml:"instructions"`
			Messages     struct {
				Fields struct {
					Welcome fieldDefault[string] `yaml:"welcome"`
					Error   fieldDefault[string] `yaml:"error"`
				} `yaml:"fields"`
			} `yaml:"messages"`
		} `yaml:"fields"`
	} `yaml:"system"`
	Language struct {
		Fields struct {
			DefaultLocale        fieldDefault[string] `yaml:"default_locale"`
			AllAdditionalLocales fieldDefault[bool]   `yaml:"all_additional_locales"`
		} `yaml:"fields"`
	} `yaml:"language"`
	Connection struct {
		Fields struct {
			AdaptiveResponseAllowed fieldDefault[bool] `yaml:"adaptive_response_allowed"`
		} `yaml:"fields"`
	} `yaml:"connection"`
}

type nestedTemplate struct {
	Reasoning struct {
		Instructions string `yaml:"instructions"`
	} `yaml:"reasoning"`
	BaseInstructions string `yaml:"base_instructions"`
}

type fieldDefault[T any] struct {
	Default *T `yaml:"default"`
}

// securityRuleSet is the mapping form of security_rules.
type securityRuleSet struct {
	DefaultRules []string `yaml:"default_rules"`
}

// decode overlays data on r. security_rules may be a list or a mapping with
// default_rules; the nested sections are applied after the flat ones.
func decode(data []byte, r *Rules) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if len(root.Content) == 0 {
		return nil
	}
	doc := root.Content[0]

	var security *securityRuleSet
	if doc.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(doc.Content); i += 2 {
			if doc.Content[i].Value != "security_rules" || doc.Content[i+1].Kind != yaml.MappingNode {
				continue
			}
			security = &securityRuleSet{}
			if err := doc.Content[i+1].Decode(security); err != nil {
				return fmt.Errorf("security_rules: %w", err)
			}
			doc.Content = append(doc.Content[:i:i], doc.Content[i+2:]...)
			break
		}
	}

	if err := doc.Decode(r); err != nil {
		return err
	}
	var nested nestedRules
	if err := doc.Decode(&nested); err != nil {
		return err
	}
	nested.apply(r)
	if security != nil && security.DefaultRules != nil {
		r.SecurityRules = security.DefaultRules
	}
	return nil
}

func (n *nestedRules) apply(r *Rules) {
	f := n.OutputFormat.Reasoning.InstructionsFormat
	setString(&r.Instructions.Indicator, f.Indicator)
	setString(&r.Instructions.LinePrefix, f.LinePrefix)

	n.Templates.TopicSelector.apply(&r.Templates.TopicSelector)
	n.Templates.Escalation.apply(&r.Templates.Escalation)
	n.Templates.OffTopic.apply(&r.Templates.OffTopic)
	n.Templates.AmbiguousQuestion.apply(&r.Templates.AmbiguousQuestion)

	sys := n.System.Fields
	if v := sys.Instructions.Default; v != nil {
		setString(&r.System.DefaultRole, *v)
	}
	if v := sys.Messages.Fields.Welcome.Default; v != nil {
		setString(&r.System.WelcomeTemplate, *v)
	}
	if v := sys.Messages.Fields.Error.Default; v != nil {
		setString(&r.System.ErrorMessage, *v)
	}

	if v := n.Language.Fields.DefaultLocale.Default; v != nil {
		setString(&r.Language.DefaultLocale, *v)
	}
	if v := n.Language.Fields.AllAdditionalLocales.Default; v != nil {
		r.Language.AllAdditionalLocales = v
	}
	if v := n.Connection.Fields.AdaptiveResponseAllowed.Default; v != nil {
		r.Connection.AdaptiveResponseAllowed = v
	}
}

// apply replaces the template instructions. base_instructions takes
// precedence over reasoning.instructions.
func (n nestedTemplate) apply(t *TopicTemplate) {
	text := n.BaseInstructions
	if strings.TrimSpace(text) == "" {
		text = n.Reasoning.Instructions
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	t.Instructions = naming.SplitLines(text)
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}
