// Package builder turns a parsed export document into the agent model.
//
// Every free-text field passes through the scanner collector on its way into
// the model, so legacy variable syntax is rewritten and each reference is
// recorded in the order the fields are visited.
package builder

import (
	"strings"

	"github.com/crmoraes/nga/internal/export"
	"github.com/crmoraes/nga/internal/models"
	"github.com/crmoraes/nga/internal/naming"
	"github.com/crmoraes/nga/internal/rules"
	"github.com/crmoraes/nga/internal/scanner"
	"github.com/crmoraes/nga/internal/typemap"
)

// Builder is stateless between calls and safe for concurrent use.
type Builder struct {
	rules *rules.Rules
	types *typemap.Mapper
}

func New(r *rules.Rules) *Builder {
	return &Builder{rules: r, types: typemap.New(r)}
}

// build carries the state of one Build call.
type build struct {
	*Builder
	col   *scanner.Collector
	decls *Declarations
}

// Build produces the agent model without synthesized topics. Variables are
// left empty; call Declarations.Resolve once all text has been collected.
func (b *Builder) Build(doc *export.Document, col *scanner.Collector) (*models.Agent, *Declarations, error) {
	st := &build{Builder: b, col: col, decls: newDeclarations(col)}
	fields := doc.Agent()

	agent := &models.Agent{
		Shape:     doc.Shape,
		Variables: models.NewOrderedMap[*models.Variable](),
	}
	st.system(agent, fields, doc.Shape)

	var err error
	switch doc.Shape {
	case models.ShapeVendor:
		agent.Topics, err = st.vendorTopics(doc.Vendor)
	case models.ShapeSimplified:
		st.simplifiedVariables(doc.Simplified.Variables)
		agent.Topics, err = st.simplifiedTopics(doc.Simplified)
	case models.ShapeGeneric:
	}
	if err != nil {
		return nil, nil, err
	}
	return agent, st.decls, nil
}

func (st *build) system(agent *models.Agent, f export.AgentFields, shape models.Shape) {
	sys := st.rules.System

	tone := strings.ToUpper(strings.TrimSpace(f.PlannerToneType))
	if _, ok := sys.Tones[tone]; !ok {
		tone = strings.ToUpper(sys.DefaultTone)
	}
	agent.Persona = models.Persona{
		Role:         strings.TrimSpace(f.PlannerRole),
		Company:      strings.TrimSpace(f.PlannerCompany),
		Tone:         tone,
		Location:     strings.TrimSpace(f.UserLocation),
		Instructions: st.col.Text(st.persona(f)),
	}

	label := naming.FirstNonEmpty(f.Label, f.Name, sys.AssistantLabel)
	welcome := naming.FirstNonEmpty(
		f.WelcomeMessage,
		f.WelcomeMessageAlt,
		strings.ReplaceAll(sys.WelcomeTemplate, "{label}", label),
	)
	agent.Messages = models.Messages{
		Welcome: st.col.Text(welcome),
		Error:   st.col.Text(sys.ErrorMessage),
	}

	shapeLabel := sys.CustomAgentLabel
	if shape == models.ShapeVendor {
		shapeLabel = sys.VendorAgentLabel
	}
	description := naming.CleanDescription(f.Description)
	if description == "" && shape != models.ShapeVendor {
		description = sys.Description
	}
	agent.Identity = models.Identity{
		Name:  f.Name,
		Label: naming.FirstNonEmpty(f.Label, f.Name, shapeLabel),
		DeveloperName: naming.FirstNonEmpty(
			naming.DeveloperName(naming.FirstNonEmpty(f.Label, f.Name)),
			naming.DeveloperName(sys.DeveloperName),
		),
		DefaultUser: strings.ReplaceAll(sys.AgentUserTemplate, "{id}", naming.FirstNonEmpty(strings.TrimSpace(f.ID), sys.AgentUserDefaultID)),
		Description: st.col.Text(description),
	}

	var additional []string
	for _, l := range f.SecondaryLocales {
		if l = strings.TrimSpace(l); l != "" {
			additional = append(additional, l)
		}
	}
	agent.Locale = models.Locale{
		Default:       naming.FirstNonEmpty(strings.TrimSpace(f.Locale), st.rules.Language.DefaultLocale),
		Additional:    additional,
		AllAdditional: st.rules.AllAdditionalLocales(),
	}

	agent.Connection = models.Connection{
		Kind:                    models.ConnectionMessaging,
		AdaptiveResponseAllowed: st.rules.AdaptiveResponseAllowed(),
	}
	if f.HasVoiceConfig {
		agent.Connection.Kind = models.ConnectionVoice
	}
}

// persona joins role, company, tone sentence and location. The default role
// stands in when neither role nor company is given.
func (st *build) persona(f export.AgentFields) string {
	var parts []string
	if role := strings.TrimSpace(f.PlannerRole); role != "" {
		parts = append(parts, role)
	}
	if company := strings.TrimSpace(f.PlannerCompany); company != "" {
		parts = append(parts, company)
	}
	if len(parts) == 0 && st.rules.System.DefaultRole != "" {
		parts = append(parts, st.rules.System.DefaultRole)
	}
	if tone := st.rules.ToneSentence(f.PlannerToneType); tone != "" {
		parts = append(parts, tone)
	}
	if loc := strings.TrimSpace(f.UserLocation); loc != "" {
		parts = append(parts, "User location: "+loc+".")
	}
	return strings.Join(parts, " ")
}

// instructions collects instruction lines from parts: each part is rewritten,
// split into lines, blank lines dropped and consecutive repeats removed.
func (st *build) instructions(parts ...string) []string {
	var lines []string
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		for _, line := range naming.SplitLines(st.col.Text(part)) {
			if n := len(lines); n > 0 && lines[n-1] == line {
				continue
			}
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 && st.rules.Instructions.Fallback != "" {
		lines = append(lines, st.col.Text(st.rules.Instructions.Fallback))
	}
	return lines
}

// topicDescription joins the cleaned description and scope, falling back to
// a generated sentence naming the topic.
func (st *build) topicDescription(description, scope, fallbackName string) string {
	var parts []string
	if d := naming.CleanDescription(description); d != "" {
		parts = append(parts, d)
	}
	if s := naming.CleanDescription(scope); s != "" {
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return st.col.Text("Handles " + fallbackName + " requests")
	}
	return st.col.Text(strings.Join(parts, " "))
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func firstValue(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
