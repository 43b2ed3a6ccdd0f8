// Package convert runs the conversion pipeline: parse the export, build the
// agent model, synthesize mandatory topics, resolve variables, render the
// script and extract the report.
package convert

import (
	"errors"

	"go.uber.org/zap"

	"github.com/crmoraes/nga/internal/builder"
	"github.com/crmoraes/nga/internal/export"
	"github.com/crmoraes/nga/internal/models"
	"github.com/crmoraes/nga/internal/report"
	"github.com/crmoraes/nga/internal/rules"
	"github.com/crmoraes/nga/internal/scanner"
	"github.com/crmoraes/nga/internal/serializer"
	"github.com/crmoraes/nga/internal/synth"
)

type Result struct {
	Output             string
	Shape              models.Shape
	HasLegacyVariables bool
	TopicCount         int
	ActionCount        int
	// AlertMessage and StatusSuffix are set only when legacy references were rewritten.
	AlertMessage string
	StatusSuffix string
	Agent        *models.Agent
	Report       *report.Report
}

// Converter is safe for concurrent use. Every call owns its own model.
type Converter struct {
	rules   *rules.Rules
	scanner *scanner.Scanner
	builder *builder.Builder
	logger  *zap.Logger
}

// New validates r and prepares a converter. A nil r uses the built-in rules.
func New(r *rules.Rules, logger *zap.Logger) (*Converter, error) {
	if r == nil {
		r = rules.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := r.Validate(); err != nil {
		return nil, &Error{Code: ErrInvalidRules, Message: err.Error(), Cause: err}
	}
	sc, err := scanner.New(r)
	if err != nil {
		return nil, &Error{Code: ErrInvalidRules, Message: err.Error(), Cause: err}
	}
	return &Converter{
		rules:   r,
		scanner: sc,
		builder: builder.New(r),
		logger:  logger.With(zap.String("component", "convert")),
	}, nil
}

func (c *Converter) Rules() *rules.Rules {
	return c.rules
}

// Convert parses raw as JSON or YAML and converts it.
func (c *Converter) Convert(raw []byte) (*Result, error) {
	doc, err := export.Parse(raw)
	if err != nil {
		return nil, classify(err)
	}
	return c.ConvertDocument(doc)
}

// ConvertFile loads the export at path and converts it. A file that cannot be
// read fails with ErrRead.
func (c *Converter) ConvertFile(path string) (*Result, error) {
	doc, err := export.Load(path)
	if err != nil {
		var structural *export.StructuralError
		if !errors.As(err, &structural) {
			return nil, &Error{Code: ErrRead, Message: err.Error(), Cause: err}
		}
		return nil, classify(err)
	}
	return c.ConvertDocument(doc)
}

// ConvertDocument converts an already parsed export. On error no partial
// result is returned.
func (c *Converter) ConvertDocument(doc *export.Document) (*Result, error) {
	col := c.scanner.NewCollector()

	agent, decls, err := c.builder.Build(doc, col)
	if err != nil {
		return nil, classify(err)
	}
	if err := synth.Apply(agent, c.rules, col); err != nil {
		return nil, classify(err)
	}
	agent.Variables, agent.UnresolvedReferences = decls.Resolve(col.References())
	if err := agent.Validate(); err != nil {
		return nil, &Error{Code: ErrInvalidModel, Message: err.Error(), Cause: err}
	}

	legacy := col.HasRewrites()
	res := &Result{
		Output:             serializer.Render(agent, c.rules.Instructions),
		Shape:              agent.Shape,
		HasLegacyVariables: legacy,
		TopicCount:         len(agent.Topics),
		ActionCount:        agent.ActionCount(),
		Agent:              agent,
		Report:             report.Extract(agent, c.rules, legacy, col.Rewritten()),
	}
	if res.HasLegacyVariables {
		res.AlertMessage = c.rules.VariableConversion.AlertMessage
		res.StatusSuffix = c.rules.VariableConversion.StatusSuffix
	}

	c.logger.Debug("converted agent",
		zap.String("shape", string(res.Shape)),
		zap.Int("topics", res.TopicCount),
		zap.Int("actions", res.ActionCount),
		zap.Int("variables", agent.Variables.Len()),
		zap.Bool("legacy_variables", res.HasLegacyVariables))
	return res, nil
}

// Convert converts raw with r, or with the built-in rules when r is nil.
func Convert(raw []byte, r *rules.Rules) (*Result, error) {
	c, err := New(r, nil)
	if err != nil {
		return nil, err
	}
	return c.Convert(raw)
}
