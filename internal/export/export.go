// Package export reads agent export documents (JSON or YAML) into a tagged
// union over the vendor, simplified and generic shapes.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crmoraes/nga/internal/models"
)

// Document holds exactly one of Vendor, Simplified or Generic, selected by Shape.
type Document struct {
	Shape      models.Shape
	Vendor     *VendorExport
	Simplified *SimplifiedExport
	Generic    *GenericExport
}

// Agent returns the agent-level fields shared by every shape.
func (d *Document) Agent() AgentFields {
	switch d.Shape {
	case models.ShapeVendor:
		return d.Vendor.AgentFields
	case models.ShapeSimplified:
		return d.Simplified.AgentFields
	case models.ShapeGeneric:
		return d.Generic.AgentFields
	}
	return AgentFields{}
}

type AgentFields struct {
	ID                string
	Name              string
	Label             string
	Description       string
	PlannerRole       string
	PlannerCompany    string
	PlannerToneType   string
	Locale            string
	SecondaryLocales  []string
	WelcomeMessage    string
	WelcomeMessageAlt string
	UserLocation      string
	HasVoiceConfig    bool
}

type VendorExport struct {
	AgentFields
	Plugins []Plugin
}

type Plugin struct {
	Name         string
	LocalDevName string
	Label        string
	Description  string
	Scope        string
	PluginType   string
	Instructions []string
	CanEscalate  bool
	Functions    []Function
}

// IsTopic reports whether the plugin becomes a topic.
func (p Plugin) IsTopic() bool {
	return p.PluginType == "TOPIC"
}

type Function struct {
	Name                       string
	LocalDevName               string
	Label                      string
	Description                string
	InvocationTargetType       string
	InvocationTargetName       string
	InvocationTargetID         string
	RequireUserConfirmation    bool
	IncludeInProgressIndicator bool
	ProgressIndicatorMessage   string
	Source                     string
	Input                      *Schema
	Output                     *Schema
}

type Schema struct {
	Properties []Property
	Required   []string
}

// IsRequired reports membership of key in the required list.
func (s *Schema) IsRequired(key string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Required {
		if r == key {
			return true
		}
	}
	return false
}

type Property struct {
	Key                 string
	Type                string
	Title               string
	Description         string
	Items               *Property
	Const               any
	Default             any
	IsUserInput         *bool
	IsDisplayable       *bool
	IsUsedByPlanner     *bool
	LightningType       string
	ComplexDataTypeName string
}

type SimplifiedExport struct {
	AgentFields
	Topics    []SimpleTopic
	Variables []SimpleVariable
}

type SimpleTopic struct {
	Name         string
	ID           string
	Label        string
	Description  string
	Scope        string
	Instructions []string
	Reasoning    string
	CanEscalate  bool
	Actions      []SimpleAction
}

type SimpleAction struct {
	Name                       string
	ID                         string
	Label                      string
	Description                string
	Type                       string
	Target                     string
	InvocationTarget           string
	TargetName                 string
	Source                     string
	ProgressIndicatorMessage   string
	RequireUserConfirmation    bool
	IncludeInProgressIndicator bool
	Inputs                     []SimpleParam
	Outputs                    []SimpleParam
}

type SimpleParam struct {
	Key             string
	Type            string
	Description     string
	Label           string
	Required        bool
	Default         any
	IsUserInput     *bool
	IsDisplayable   *bool
	IsUsedByPlanner *bool
	ComplexType     string
}

type SimpleVariable struct {
	Name        string
	ID          string
	Label       string
	Type        string
	Source      string
	Description string
}

type GenericExport struct {
	AgentFields
}

func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return Parse(data)
}

// Parse decodes data and classifies it. Every failure is a *StructuralError.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &StructuralError{Message: "document is not valid JSON or YAML", Err: err}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &StructuralError{Message: "document is empty"}
	}
	top := resolve(root.Content[0])
	if top.Kind != yaml.MappingNode {
		return nil, &StructuralError{Message: fmt.Sprintf("document must be an object, got %s", kindName(top))}
	}

	d := &decoder{}
	o := object{d: d, node: top}
	shape, err := classify(o)
	if err != nil {
		return nil, err
	}

	doc := &Document{Shape: shape}
	fields := readAgentFields(o)
	switch shape {
	case models.ShapeVendor:
		doc.Vendor = &VendorExport{AgentFields: fields, Plugins: readPlugins(o)}
	case models.ShapeSimplified:
		doc.Simplified = &SimplifiedExport{
			AgentFields: fields,
			Topics:      readSimpleTopics(o),
			Variables:   readSimpleVariables(o),
		}
	case models.ShapeGeneric:
		doc.Generic = &GenericExport{AgentFields: fields}
	}
	if d.err != nil {
		return nil, d.err
	}
	return doc, nil
}

// classify picks the shape from the topic containers: a non-empty plugins
// array is the vendor export, a non-empty topics array the simplified one.
func classify(o object) (models.Shape, error) {
	if n, _ := o.sequence("plugins"); n != nil && len(n.Content) > 0 {
		return models.ShapeVendor, nil
	}
	if n, _ := o.sequence("topics"); n != nil && len(n.Content) > 0 {
		return models.ShapeSimplified, nil
	}
	if o.d.err != nil {
		return "", o.d.err
	}
	return models.ShapeGeneric, nil
}

func readAgentFields(o object) AgentFields {
	return AgentFields{
		ID:                o.str("id"),
		Name:              o.str("name"),
		Label:             o.str("label"),
		Description:       o.str("description"),
		PlannerRole:       o.str("plannerRole"),
		PlannerCompany:    o.str("plannerCompany"),
		PlannerToneType:   o.str("plannerToneType"),
		Locale:            o.str("locale"),
		SecondaryLocales:  o.strs("secondaryLocales"),
		WelcomeMessage:    o.str("welcomeMessage"),
		WelcomeMessageAlt: o.str("welcomeMessageAlt"),
		UserLocation:      o.str("userLocation"),
		HasVoiceConfig:    o.has("voiceConfig"),
	}
}

func readPlugins(o object) []Plugin {
	var plugins []Plugin
	for _, p := range o.objs("plugins") {
		plugin := Plugin{
			Name:         p.str("name"),
			LocalDevName: p.str("localDevName"),
			Label:        p.str("label"),
			Description:  p.str("description"),
			Scope:        p.str("scope"),
			PluginType:   p.str("pluginType"),
			CanEscalate:  flag(p.boolean("canEscalate")),
		}
		for _, def := range p.objs("instructionDefinitions") {
			if text := def.str("description"); strings.TrimSpace(text) != "" {
				plugin.Instructions = append(plugin.Instructions, text)
			}
		}
		for _, f := range p.objs("functions") {
			plugin.Functions = append(plugin.Functions, readFunction(f))
		}
		plugins = append(plugins, plugin)
	}
	return plugins
}

func readFunction(f object) Function {
	fn := Function{
		Name:                       f.str("name"),
		LocalDevName:               f.str("localDevName"),
		Label:                      f.str("label"),
		Description:                f.str("description"),
		InvocationTargetType:       f.str("invocationTargetType"),
		InvocationTargetName:       f.str("invocationTargetName"),
		InvocationTargetID:         f.str("invocationTargetId"),
		RequireUserConfirmation:    flag(f.boolean("requireUserConfirmation")),
		IncludeInProgressIndicator: flag(f.boolean("includeInProgressIndicator")),
		ProgressIndicatorMessage:   f.str("progressIndicatorMessage"),
		Source:                     f.str("source"),
	}
	if in, ok := f.obj("inputType"); ok {
		fn.Input = readSchema(in)
	}
	if out, ok := f.obj("outputType"); ok {
		fn.Output = readSchema(out)
	}
	return fn
}

func readSchema(o object) *Schema {
	s := &Schema{Required: o.strs("required")}
	for _, e := range o.entries("properties") {
		p := readProperty(e.obj)
		p.Key = e.key
		s.Properties = append(s.Properties, p)
	}
	return s
}

func readProperty(o object) Property {
	p := Property{
		Type:                o.str("type"),
		Title:               o.str("title"),
		Description:         o.str("description"),
		Const:               o.value("const"),
		Default:             o.value("default"),
		IsUserInput:         o.boolean("copilotAction:isUserInput"),
		IsDisplayable:       o.boolean("copilotAction:isDisplayable"),
		IsUsedByPlanner:     o.boolean("copilotAction:isUsedByPlanner"),
		LightningType:       o.str("lightning:type"),
		ComplexDataTypeName: o.str("complexDataTypeName"),
	}
	if items, ok := o.obj("items"); ok {
		item := readProperty(items)
		p.Items = &item
	}
	return p
}

func readSimpleTopics(o object) []SimpleTopic {
	var topics []SimpleTopic
	for _, t := range o.objs("topics") {
		topic := SimpleTopic{
			Name:         t.str("name"),
			ID:           t.str("id"),
			Label:        t.str("label"),
			Description:  t.str("description"),
			Scope:        t.str("scope"),
			Instructions: t.strOrStrs("instructions"),
			Reasoning:    t.str("reasoning"),
			CanEscalate:  flag(t.boolean("canEscalate", "can_escalate")),
		}
		for _, a := range t.objs("actions") {
			topic.Actions = append(topic.Actions, readSimpleAction(a))
		}
		topics = append(topics, topic)
	}
	return topics
}

func readSimpleAction(a object) SimpleAction {
	action := SimpleAction{
		Name:                       a.str("name"),
		ID:                         a.str("id"),
		Label:                      a.str("label"),
		Description:                a.str("description"),
		Type:                       a.str("type"),
		Target:                     a.str("target"),
		InvocationTarget:           a.str("invocationTarget", "invocation_target"),
		TargetName:                 a.str("targetName", "target_name"),
		Source:                     a.str("source"),
		ProgressIndicatorMessage:   a.str("progressIndicatorMessage", "progress_indicator_message"),
		RequireUserConfirmation:    flag(a.boolean("requireUserConfirmation", "require_user_confirmation")),
		IncludeInProgressIndicator: flag(a.boolean("includeInProgressIndicator", "include_in_progress_indicator")),
	}
	for _, e := range a.entries("inputs") {
		action.Inputs = append(action.Inputs, readSimpleParam(e))
	}
	for _, e := range a.entries("outputs") {
		action.Outputs = append(action.Outputs, readSimpleParam(e))
	}
	return action
}

func readSimpleParam(e entry) SimpleParam {
	o := e.obj
	return SimpleParam{
		Key:             e.key,
		Type:            o.str("type"),
		Description:     o.str("description"),
		Label:           o.str("label"),
		Required:        flag(o.boolean("required")),
		Default:         o.value("default"),
		IsUserInput:     o.boolean("isUserInput", "is_user_input"),
		IsDisplayable:   o.boolean("isDisplayable", "is_displayable"),
		IsUsedByPlanner: o.boolean("isUsedByPlanner", "is_used_by_planner"),
		ComplexType:     o.str("complexType", "complex_type", "complexDataTypeName", "complex_data_type_name"),
	}
}

func readSimpleVariables(o object) []SimpleVariable {
	var vars []SimpleVariable
	for _, v := range o.objs("variables") {
		vars = append(vars, SimpleVariable{
			Name:        v.str("name"),
			ID:          v.str("id"),
			Label:       v.str("label"),
			Type:        v.str("type"),
			Source:      v.str("source"),
			Description: v.str("description"),
		})
	}
	return vars
}

func flag(b *bool) bool {
	return b != nil && *b
}

// Discover expands inputs into export files. Directories contribute their
// .json, .yaml and .yml files, non-recursively and in name order.
func Discover(inputs []string) ([]string, error) {
	var files []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, in)
			continue
		}
		found, err := discoverDir(in)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", in, err)
		}
		files = append(files, found...)
	}
	return files, nil
}

func discoverDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".json", ".yaml", ".yml":
			files = append(files, filepath.Join(dir, name))
		}
	}

	return files, nil
}
