// Package synth completes a built agent with the topics every script needs:
// the start topic, the escalation and fallback topics, inter-topic
// transitions and escalation references.
package synth

import (
	"fmt"

	"github.com/crmoraes/nga/internal/models"
	"github.com/crmoraes/nga/internal/naming"
	"github.com/crmoraes/nga/internal/rules"
	"github.com/crmoraes/nga/internal/scanner"
)

const (
	EscalationKey        = "escalation"
	OffTopicKey          = "off_topic"
	AmbiguousQuestionKey = "ambiguous_question"
)

// ConflictError reports a synthesized reference whose name is already used by
// a reference of another kind in the same topic.
type ConflictError struct {
	Topic    string
	Name     string
	Kind     models.RefKind
	Existing models.RefKind
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("topic %q: %s reference %q clashes with the %s of the same name", e.Topic, e.Kind, e.Name, e.Existing)
}

// Path is the model location of the clashing reference.
func (e *ConflictError) Path() string {
	return fmt.Sprintf("topics.%s.reasoning.%s", e.Topic, e.Name)
}

// Apply adds missing mandatory topics and references to agent in place.
// Template text goes through col so its references count like any other text.
// A same-kind reference already present under a synthesized name wins.
func Apply(agent *models.Agent, r *rules.Rules, col *scanner.Collector) error {
	start := agent.Topic(models.StartTopicKey)
	if start == nil {
		start = fromTemplate(models.StartTopicKey, r.Templates.TopicSelector, nil, col)
		agent.Topics = append([]*models.Topic{start}, agent.Topics...)
	} else {
		agent.Topics = moveToFront(agent.Topics, start)
	}
	for _, t := range agent.Topics {
		t.IsStart = t == start
	}

	fallbacks := []struct {
		key  string
		tmpl rules.TopicTemplate
	}{
		{EscalationKey, r.Templates.Escalation},
		{OffTopicKey, r.Templates.OffTopic},
		{AmbiguousQuestionKey, r.Templates.AmbiguousQuestion},
	}
	for _, fb := range fallbacks {
		if agent.Topic(fb.key) != nil {
			continue
		}
		var security []string
		if fb.key != EscalationKey && fb.tmpl.IncludesSecurityRules() {
			security = r.SecurityRules
		}
		t := fromTemplate(fb.key, fb.tmpl, security, col)
		if fb.key == EscalationKey {
			if err := add(t, escalateRef(r, col)); err != nil {
				return err
			}
		}
		agent.Topics = append(agent.Topics, t)
	}

	for _, t := range agent.Topics {
		if t == start {
			continue
		}
		if err := add(start, models.TransitionRef(t.Key)); err != nil {
			return err
		}
	}

	for _, t := range agent.Topics {
		if t.CanEscalate {
			if err := add(t, escalateRef(r, col)); err != nil {
				return err
			}
		}
	}
	return nil
}

func add(t *models.Topic, ref *models.ReasoningRef) error {
	if existing, ok := t.Reasoning.Get(ref.Name); ok {
		if existing.Kind != ref.Kind {
			return &ConflictError{Topic: t.Key, Name: ref.Name, Kind: ref.Kind, Existing: existing.Kind}
		}
		return nil
	}
	t.Reasoning.Add(ref.Name, ref)
	return nil
}

func fromTemplate(key string, tmpl rules.TopicTemplate, security []string, col *scanner.Collector) *models.Topic {
	t := models.NewTopic(key)
	t.Synthesized = true
	t.Label = tmpl.Label
	t.Description = col.Text(tmpl.Description)
	for _, line := range tmpl.Instructions {
		t.Instructions = append(t.Instructions, naming.SplitLines(col.Text(line))...)
	}
	if len(security) > 0 {
		t.Instructions = append(t.Instructions, "Rules:")
		for _, rule := range security {
			t.Instructions = append(t.Instructions, "  "+col.Text(rule))
		}
	}
	return t
}

func escalateRef(r *rules.Rules, col *scanner.Collector) *models.ReasoningRef {
	ref := r.Templates.EscalateReference
	return &models.ReasoningRef{
		Name:        ref.Name,
		Kind:        models.RefEscalation,
		Target:      ref.Target,
		Description: col.Text(ref.Description),
	}
}

func moveToFront(topics []*models.Topic, t *models.Topic) []*models.Topic {
	out := make([]*models.Topic, 0, len(topics))
	out = append(out, t)
	for _, other := range topics {
		if other != t {
			out = append(out, other)
		}
	}
	return out
}
