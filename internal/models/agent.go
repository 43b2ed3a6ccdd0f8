package models

import (
	"fmt"
	"regexp"
	"strings"
)

type Shape string

const (
	ShapeVendor     Shape = "vendor"
	ShapeSimplified Shape = "simplified"
	ShapeGeneric    Shape = "generic"
)

type ConnectionKind string

const (
	ConnectionMessaging ConnectionKind = "messaging"
	ConnectionVoice     ConnectionKind = "voice"
)

type VariableCategory string

const (
	VariableMutable VariableCategory = "mutable"
	VariableLinked  VariableCategory = "linked"
)

type RefKind string

const (
	RefAction     RefKind = "action"
	RefTransition RefKind = "transition"
	RefEscalation RefKind = "escalation"
)

// StartTopicKey is the key of the topic rendered as start_agent.
const StartTopicKey = "topic_selector"

// ActionOutputSourcePrefix marks linked sources that point at an action output.
// Such sources are placeholders and are never rendered.
const ActionOutputSourcePrefix = "@action."

// Agent is the intermediate model built once per conversion. It is not
// modified after synthesis.
type Agent struct {
	Shape      Shape                  `yaml:"shape"`
	Identity   Identity               `yaml:"identity"`
	Persona    Persona                `yaml:"persona"`
	Messages   Messages               `yaml:"messages"`
	Locale     Locale                 `yaml:"locale"`
	Connection Connection             `yaml:"connection"`
	Variables  *OrderedMap[*Variable] `yaml:"variables"`
	Topics     []*Topic               `yaml:"topics"`
	// UnresolvedReferences are referenced names that are not valid identifiers.
	UnresolvedReferences []string `yaml:"unresolved_references,omitempty"`
}

type Identity struct {
	Name          string `yaml:"name"`
	Label         string `yaml:"label"`
	Description   string `yaml:"description"`
	DeveloperName string `yaml:"developer_name"`
	DefaultUser   string `yaml:"default_user"`
}

type Persona struct {
	Role     string `yaml:"role,omitempty"`
	Company  string `yaml:"company,omitempty"`
	Tone     string `yaml:"tone"`
	Location string `yaml:"location,omitempty"`
	// Instructions is the rendered persona text.
	Instructions string `yaml:"instructions"`
}

type Messages struct {
	Welcome string `yaml:"welcome"`
	Error   string `yaml:"error"`
}

type Locale struct {
	Default       string   `yaml:"default"`
	Additional    []string `yaml:"additional,omitempty"`
	AllAdditional bool     `yaml:"all_additional"`
}

type Connection struct {
	Kind                    ConnectionKind `yaml:"kind"`
	AdaptiveResponseAllowed bool           `yaml:"adaptive_response_allowed"`
}

type Variable struct {
	Name        string           `yaml:"name"`
	Category    VariableCategory `yaml:"category"`
	Type        DataType         `yaml:"type"`
	Source      string           `yaml:"source,omitempty"`
	Label       string           `yaml:"label,omitempty"`
	Description string           `yaml:"description"`
}

// NewVariable builds a variable and enforces the object rule: object-like
// variables are always mutable and never carry a source.
func NewVariable(name string, category VariableCategory, typ DataType, source, label, description string) *Variable {
	v := &Variable{
		Name:        name,
		Category:    category,
		Type:        typ,
		Source:      source,
		Label:       label,
		Description: description,
	}
	if typ.IsObjectLike() {
		v.Category = VariableMutable
		v.Source = ""
	}
	if v.Category == VariableMutable {
		v.Source = ""
	}
	return v
}

// RenderedSource returns the source shown in the script, or "".
func (v *Variable) RenderedSource() string {
	if v.Category != VariableLinked || strings.HasPrefix(v.Source, ActionOutputSourcePrefix) {
		return ""
	}
	return v.Source
}

type Topic struct {
	Key          string   `yaml:"key"`
	Label        string   `yaml:"label"`
	Description  string   `yaml:"description"`
	Instructions []string `yaml:"instructions"`
	CanEscalate  bool     `yaml:"can_escalate"`
	IsStart      bool     `yaml:"is_start"`
	// Synthesized topics were added from a template, not read from the input.
	Synthesized bool                       `yaml:"synthesized"`
	Actions     *OrderedMap[*Action]       `yaml:"actions"`
	Reasoning   *OrderedMap[*ReasoningRef] `yaml:"reasoning"`
}

func NewTopic(key string) *Topic {
	return &Topic{
		Key:       key,
		Actions:   NewOrderedMap[*Action](),
		Reasoning: NewOrderedMap[*ReasoningRef](),
	}
}

type ReasoningRef struct {
	Name        string   `yaml:"name"`
	Kind        RefKind  `yaml:"kind"`
	Target      string   `yaml:"target"`
	Params      []string `yaml:"params,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

func ActionRef(action *Action) *ReasoningRef {
	return &ReasoningRef{
		Name:   action.Name,
		Kind:   RefAction,
		Target: "@actions." + action.Name,
		Params: action.Inputs.Keys(),
	}
}

func TransitionRef(topicKey string) *ReasoningRef {
	return &ReasoningRef{
		Name:   "go_to_" + topicKey,
		Kind:   RefTransition,
		Target: "@utils.transition to @topic." + topicKey,
	}
}

type Action struct {
	Name                string                 `yaml:"name"`
	Label               string                 `yaml:"label,omitempty"`
	Description         string                 `yaml:"description"`
	RequireConfirmation bool                   `yaml:"require_user_confirmation"`
	ShowProgress        bool                   `yaml:"include_in_progress_indicator"`
	ProgressMessage     string                 `yaml:"progress_indicator_message,omitempty"`
	Source              string                 `yaml:"source,omitempty"`
	Target              string                 `yaml:"target"`
	Inputs              *OrderedMap[*ParamDef] `yaml:"inputs"`
	Outputs             *OrderedMap[*ParamDef] `yaml:"outputs"`
}

func NewAction(name string) *Action {
	return &Action{
		Name:    name,
		Inputs:  NewOrderedMap[*ParamDef](),
		Outputs: NewOrderedMap[*ParamDef](),
	}
}

// TargetParts splits a kind://name target. A target without a scheme has an
// empty kind.
func (a *Action) TargetParts() (kind, name string) {
	if i := strings.Index(a.Target, "://"); i >= 0 {
		return a.Target[:i], a.Target[i+3:]
	}
	return "", a.Target
}

type ParamDef struct {
	Name            string   `yaml:"name"`
	Type            DataType `yaml:"type"`
	ConstValue      any      `yaml:"const_value,omitempty"`
	Label           string   `yaml:"label,omitempty"`
	Description     string   `yaml:"description,omitempty"`
	IsRequired      bool     `yaml:"is_required,omitempty"`
	IsUserInput     bool     `yaml:"is_user_input,omitempty"`
	IsDisplayable   bool     `yaml:"is_displayable,omitempty"`
	IsUsedByPlanner bool     `yaml:"is_used_by_planner,omitempty"`
	ComplexTypeName string   `yaml:"complex_data_type_name,omitempty"`
}

var (
	topicKeyPattern   = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// StartTopic returns the topic marked as start, or nil.
func (a *Agent) StartTopic() *Topic {
	for _, t := range a.Topics {
		if t.IsStart {
			return t
		}
	}
	return nil
}

func (a *Agent) Topic(key string) *Topic {
	for _, t := range a.Topics {
		if t.Key == key {
			return t
		}
	}
	return nil
}

func (a *Agent) ActionCount() int {
	n := 0
	for _, t := range a.Topics {
		n += t.Actions.Len()
	}
	return n
}

// Validate checks the structural invariants of a finished model.
func (a *Agent) Validate() error {
	starts := 0
	seen := make(map[string]bool, len(a.Topics))
	for i, t := range a.Topics {
		if !topicKeyPattern.MatchString(t.Key) {
			return fmt.Errorf("topics[%d]: invalid key %q", i, t.Key)
		}
		if seen[t.Key] {
			return fmt.Errorf("topics[%d]: duplicate key %q", i, t.Key)
		}
		seen[t.Key] = true
		if t.IsStart {
			starts++
		}
	}
	if starts != 1 {
		return fmt.Errorf("expected exactly one start topic, found %d", starts)
	}
	if a.StartTopic() != a.Topics[0] {
		return fmt.Errorf("start topic %q must come first", a.StartTopic().Key)
	}
	for _, v := range a.Variables.Values() {
		if !identifierPattern.MatchString(v.Name) {
			return fmt.Errorf("variable %q: invalid name", v.Name)
		}
		if v.Type.IsObjectLike() && v.Category != VariableMutable {
			return fmt.Errorf("variable %q: %s type must be mutable", v.Name, v.Type)
		}
	}
	return nil
}
