// Package report extracts structured analysis data from a finished agent
// model: what was converted, what is missing and what needs manual review.
package report

import (
	"fmt"
	"strings"

	"github.com/crmoraes/nga/internal/models"
	"github.com/crmoraes/nga/internal/rules"
	"github.com/crmoraes/nga/internal/scanner"
)

const (
	noDescription  = "No description provided"
	kindEscalation = "escalation"
)

type Report struct {
	AgentInfo               AgentInfo               `json:"agent_info"`
	Topics                  []Topic                 `json:"topics"`
	Variables               []Variable              `json:"variables"`
	VariablesInInstructions VariablesInInstructions `json:"variables_in_instructions"`
	FlaggedActions          []FlaggedAction         `json:"flagged_actions"`
	Notes                   []string                `json:"notes"`
}

type AgentInfo struct {
	Name             string   `json:"name"`
	Label            string   `json:"label"`
	Description      string   `json:"description"`
	Role             string   `json:"role,omitempty"`
	Company          string   `json:"company,omitempty"`
	Tone             string   `json:"tone,omitempty"`
	Locale           string   `json:"locale"`
	SecondaryLocales []string `json:"secondary_locales,omitempty"`
}

type Topic struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	IsStart     bool     `json:"is_start"`
	Synthesized bool     `json:"synthesized"`
	Actions     []Action `json:"actions"`
}

type Action struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Target      string `json:"target"`
	Kind        string `json:"kind"`
	TargetName  string `json:"target_name"`
}

type Variable struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	Source      string `json:"source,omitempty"`
	Description string `json:"description"`
}

type VariablesInInstructions struct {
	HasVariables bool     `json:"has_variables"`
	AlertMessage string   `json:"alert_message,omitempty"`
	Variables    []string `json:"variables"`
}

// FlaggedAction is an action whose target looks like a record id rather than
// an API name. The target must be re-selected by hand after import.
type FlaggedAction struct {
	Topic      string `json:"topic"`
	Action     string `json:"action"`
	Kind       string `json:"kind"`
	TargetName string `json:"target_name"`
}

// Extract walks agent, which must be fully synthesized. legacy reports whether
// any legacy reference was rewritten during the build, and rewritten lists the
// names captured from those references.
func Extract(agent *models.Agent, r *rules.Rules, legacy bool, rewritten []string) *Report {
	rep := &Report{
		AgentInfo: agentInfo(agent),
		Topics:    []Topic{},
		Variables: []Variable{},
		VariablesInInstructions: VariablesInInstructions{
			HasVariables: legacy || len(rewritten) > 0,
			Variables:    append([]string{}, rewritten...),
		},
		FlaggedActions: []FlaggedAction{},
	}
	if rep.VariablesInInstructions.HasVariables {
		rep.VariablesInInstructions.AlertMessage = r.VariableConversion.AlertMessage
	}

	for _, t := range agent.Topics {
		rep.Topics = append(rep.Topics, topic(t))
		for _, a := range t.Actions.Values() {
			kind, name := a.TargetParts()
			if r.IsFlaggedKind(kind) && scanner.IsOpaqueID(name) {
				rep.FlaggedActions = append(rep.FlaggedActions, FlaggedAction{
					Topic:      t.Key,
					Action:     a.Name,
					Kind:       kind,
					TargetName: name,
				})
			}
		}
	}
	for _, v := range agent.Variables.Values() {
		rep.Variables = append(rep.Variables, Variable{
			Name:        v.Name,
			Category:    string(v.Category),
			Type:        string(v.Type),
			Source:      v.RenderedSource(),
			Description: v.Description,
		})
	}

	rep.Notes = notes(rep, agent, r)
	return rep
}

func agentInfo(agent *models.Agent) AgentInfo {
	info := AgentInfo{
		Name:             agent.Identity.Name,
		Label:            agent.Identity.Label,
		Description:      agent.Identity.Description,
		Role:             agent.Persona.Role,
		Company:          agent.Persona.Company,
		Tone:             agent.Persona.Tone,
		Locale:           agent.Locale.Default,
		SecondaryLocales: agent.Locale.Additional,
	}
	if Missing(info.Description) {
		info.Description = noDescription
	}
	return info
}

func topic(t *models.Topic) Topic {
	out := Topic{
		Key:         t.Key,
		Label:       t.Label,
		Description: t.Description,
		IsStart:     t.IsStart,
		Synthesized: t.Synthesized,
		Actions:     []Action{},
	}
	for _, a := range t.Actions.Values() {
		kind, name := a.TargetParts()
		out.Actions = append(out.Actions, Action{
			Name:        a.Name,
			Label:       a.Label,
			Description: a.Description,
			Target:      a.Target,
			Kind:        kind,
			TargetName:  name,
		})
	}
	for _, ref := range t.Reasoning.Values() {
		if ref.Kind != models.RefEscalation {
			continue
		}
		out.Actions = append(out.Actions, Action{
			Name:        ref.Name,
			Description: ref.Description,
			Target:      ref.Target,
			Kind:        kindEscalation,
		})
	}
	return out
}

// Missing reports whether a description is effectively absent.
func Missing(description string) bool {
	d := strings.TrimSpace(description)
	return d == "" || d == "No description"
}

func notes(rep *Report, agent *models.Agent, r *rules.Rules) []string {
	out := []string{}

	var undescribed, actionless []string
	missingActions := 0
	for _, t := range rep.Topics {
		for _, a := range t.Actions {
			if a.Kind != kindEscalation && Missing(a.Description) {
				missingActions++
			}
		}
		if t.Synthesized {
			continue
		}
		if Missing(t.Description) {
			undescribed = append(undescribed, t.Key)
		}
		if len(t.Actions) == 0 {
			actionless = append(actionless, t.Key)
		}
	}
	if len(undescribed) > 0 {
		out = append(out, fmt.Sprintf("%d topic(s) are missing descriptions: %s", len(undescribed), strings.Join(undescribed, ", ")))
	}
	if len(actionless) > 0 {
		out = append(out, fmt.Sprintf("%d topic(s) have no actions: %s", len(actionless), strings.Join(actionless, ", ")))
	}
	if missingActions > 0 {
		out = append(out, fmt.Sprintf("%d action(s) are missing descriptions", missingActions))
	}

	var vars []string
	for _, v := range rep.Variables {
		if Missing(v.Description) {
			vars = append(vars, v.Name)
		}
	}
	if len(vars) > 0 {
		out = append(out, fmt.Sprintf("%d variable(s) are missing descriptions: %s", len(vars), strings.Join(vars, ", ")))
	}

	if n := len(rep.FlaggedActions); n > 0 {
		out = append(out, fmt.Sprintf(
			"%d action(s) target record IDs instead of API names; re-select their targets after import", n))
		for _, f := range rep.FlaggedActions {
			out = append(out, fmt.Sprintf("%s / %s (%s): %s", f.Topic, f.Action, f.Kind, f.TargetName))
		}
	}

	if len(agent.UnresolvedReferences) > 0 {
		out = append(out, fmt.Sprintf("%d reference(s) could not be declared as variables: %s",
			len(agent.UnresolvedReferences), strings.Join(agent.UnresolvedReferences, ", ")))
	}

	if rep.VariablesInInstructions.HasVariables && r.VariableConversion.StatusSuffix != "" {
		out = append(out, r.VariableConversion.StatusSuffix)
	}
	return out
}
