// Package serializer renders an agent model as agent script text.
//
// The layout is fixed: every section and record has its own indentation
// depth, field order never depends on map order, booleans are True/False and
// parameter names are always quoted.
package serializer

import (
	"fmt"
	"strings"

	"github.com/crmoraes/nga/internal/models"
	"github.com/crmoraes/nga/internal/naming"
	"github.com/crmoraes/nga/internal/rules"
)

// Indentation depth, in spaces, of each kind of line.
const (
	depthSystemField      = 4
	depthMessageField     = 8
	depthConfigField      = 2
	depthVariable         = 4
	depthVariableField    = 8
	depthSectionField     = 4
	depthTopicField       = 4
	depthInstructions     = 8
	depthInstructionLine  = 12
	depthReasoningActions = 8
	depthReference        = 12
	depthReferenceField   = 16
	depthActionsHeader    = 4
	depthAction           = 8
	depthActionField      = 12
	depthParamsHeader     = 12
	depthParam            = 16
	depthParamField       = 20
)

type writer struct {
	b strings.Builder
}

func (w *writer) line(depth int, format string, args ...any) {
	w.b.WriteString(strings.Repeat(" ", depth))
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteByte('\n')
}

func (w *writer) blank() {
	w.b.WriteByte('\n')
}

// Render produces the script for a. The output always ends with a single newline.
func Render(a *models.Agent, format rules.InstructionFormat) string {
	var sections []string
	sections = append(sections, system(a), config(a))
	if a.Variables.Len() > 0 {
		sections = append(sections, variables(a))
	}
	sections = append(sections, language(a), connection(a))
	for _, t := range a.Topics {
		sections = append(sections, topic(t, format))
	}
	return strings.Join(sections, "\n")
}

func system(a *models.Agent) string {
	var w writer
	w.line(0, "system:")
	w.line(depthSystemField, "instructions: %s", Quote(a.Persona.Instructions))
	w.line(depthSystemField, "messages:")
	w.line(depthMessageField, "welcome: %s", Quote(a.Messages.Welcome))
	w.line(depthMessageField, "error: %s", Quote(a.Messages.Error))
	return w.b.String()
}

func config(a *models.Agent) string {
	var w writer
	w.line(0, "config:")
	w.line(depthConfigField, "default_agent_user: %s", Quote(a.Identity.DefaultUser))
	w.line(depthConfigField, "agent_label: %s", Quote(a.Identity.Label))
	w.line(depthConfigField, "developer_name: %s", Quote(a.Identity.DeveloperName))
	w.line(depthConfigField, "description: %s", Quote(a.Identity.Description))
	return w.b.String()
}

func variables(a *models.Agent) string {
	var w writer
	w.line(0, "variables:")
	for _, v := range a.Variables.Values() {
		w.line(depthVariable, "%s: %s %s", v.Name, v.Category, v.Type)
		if src := v.RenderedSource(); src != "" {
			w.line(depthVariableField, "source: %s", src)
		}
		if v.Label != "" {
			w.line(depthVariableField, "label: %s", Quote(v.Label))
		}
		w.line(depthVariableField, "description: %s", Quote(v.Description))
	}
	return w.b.String()
}

func language(a *models.Agent) string {
	var w writer
	w.line(0, "language:")
	w.line(depthSectionField, "default_locale: %s", Quote(a.Locale.Default))
	w.line(depthSectionField, "additional_locales: %s", Quote(strings.Join(a.Locale.Additional, ", ")))
	w.line(depthSectionField, "all_additional_locales: %s", Bool(a.Locale.AllAdditional))
	return w.b.String()
}

func connection(a *models.Agent) string {
	var w writer
	w.line(0, "connection %s:", a.Connection.Kind)
	w.line(depthSectionField, "adaptive_response_allowed: %s", Bool(a.Connection.AdaptiveResponseAllowed))
	return w.b.String()
}

func topic(t *models.Topic, format rules.InstructionFormat) string {
	var w writer
	if t.IsStart {
		w.line(0, "start_agent %s:", t.Key)
	} else {
		w.line(0, "topic %s:", t.Key)
	}
	w.line(depthTopicField, "label: %s", Quote(t.Label))
	w.blank()
	w.line(depthTopicField, "description: %s", Quote(t.Description))
	w.blank()

	w.line(depthTopicField, "reasoning:")
	w.line(depthInstructions, "instructions: %s", format.Indicator)
	for _, l := range t.Instructions {
		for _, part := range naming.SplitLines(l) {
			w.line(depthInstructionLine, "%s %s", format.LinePrefix, part)
		}
	}
	if t.Reasoning.Len() > 0 {
		w.line(depthReasoningActions, "actions:")
		for _, ref := range t.Reasoning.Values() {
			w.line(depthReference, "%s: %s", ref.Name, ref.Target)
			for _, p := range ref.Params {
				w.line(depthReferenceField, "with %s = ...", p)
			}
			if ref.Description != "" {
				w.line(depthReferenceField, "description: %s", Quote(ref.Description))
			}
		}
	}

	if t.Actions.Len() > 0 {
		w.blank()
		w.line(depthActionsHeader, "actions:")
		for _, a := range t.Actions.Values() {
			action(&w, a)
		}
	}
	return w.b.String()
}

func action(w *writer, a *models.Action) {
	w.line(depthAction, "%s:", a.Name)
	w.line(depthActionField, "description: %s", Quote(a.Description))
	if a.Label != "" {
		w.line(depthActionField, "label: %s", Quote(a.Label))
	}
	w.line(depthActionField, "require_user_confirmation: %s", Bool(a.RequireConfirmation))
	w.line(depthActionField, "include_in_progress_indicator: %s", Bool(a.ShowProgress))
	if a.Source != "" {
		w.line(depthActionField, "source: %s", Quote(a.Source))
	}
	w.line(depthActionField, "target: %s", Quote(a.Target))
	if a.ProgressMessage != "" {
		w.line(depthActionField, "progress_indicator_message: %s", Quote(a.ProgressMessage))
	}

	if a.Inputs.Len() > 0 {
		w.blank()
		w.line(depthParamsHeader, "inputs:")
		for _, p := range a.Inputs.Values() {
			w.line(depthParam, "%s: %s", Quote(p.Name), p.Type)
			paramText(w, p)
			w.line(depthParamField, "is_required: %s", Bool(p.IsRequired))
			w.line(depthParamField, "is_user_input: %s", Bool(p.IsUserInput))
			complexType(w, p)
		}
	}
	if a.Outputs.Len() > 0 {
		w.blank()
		w.line(depthParamsHeader, "outputs:")
		for _, p := range a.Outputs.Values() {
			w.line(depthParam, "%s: %s", Quote(p.Name), p.Type)
			paramText(w, p)
			w.line(depthParamField, "is_displayable: %s", Bool(p.IsDisplayable))
			w.line(depthParamField, "is_used_by_planner: %s", Bool(p.IsUsedByPlanner))
			complexType(w, p)
		}
	}
}

func paramText(w *writer, p *models.ParamDef) {
	if p.Description != "" {
		w.line(depthParamField, "description: %s", Quote(p.Description))
	}
	if p.Label != "" {
		w.line(depthParamField, "label: %s", Quote(p.Label))
	}
}

func complexType(w *writer, p *models.ParamDef) {
	if p.ComplexTypeName != "" {
		w.line(depthParamField, "complex_data_type_name: %s", Quote(p.ComplexTypeName))
	}
}

var quoteReplacer = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// Quote double-quotes s, escaping backslash, quote, newline, carriage return and tab.
func Quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}

func Bool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
