package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crmoraes/nga/internal/convert"
	"github.com/crmoraes/nga/internal/hooks"
	"github.com/crmoraes/nga/internal/models"
	"github.com/crmoraes/nga/internal/storage"
	"github.com/crmoraes/nga/internal/workspace"
)

// Failure codes for problems after the conversion itself.
const (
	ErrHook  convert.ErrorCode = "HOOK"
	ErrWrite convert.ErrorCode = "WRITE"
)

type Orchestrator struct {
	converter  *convert.Converter
	storage    *storage.Storage
	hooks      *hooks.Hooks
	outputsDir string
	logger     *zap.Logger
}

// New wires the pieces of a conversion run. h may be nil when no hooks file
// is configured.
func New(conv *convert.Converter, store *storage.Storage, h *hooks.Hooks, outputsDir string, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		converter:  conv,
		storage:    store,
		hooks:      h,
		outputsDir: outputsDir,
		logger:     logger.With(zap.String("component", "orchestrator")),
	}
}

type Options struct {
	// Output is the script file to write. Empty leaves writing to the caller.
	Output string
	// WithReport writes the report JSON next to Output.
	WithReport bool
}

// Outcome is one converted file. Result is nil when the conversion failed.
type Outcome struct {
	Conversion *models.Conversion
	Result     *convert.Result
	Name       string
	ReportPath string
}

type BatchResult struct {
	ID     string
	Path   string
	Files  []*Outcome
	Failed int
}

// Convert converts a single input file and records it in history. The
// returned error is the conversion failure, already recorded.
func (o *Orchestrator) Convert(ctx context.Context, input string, opts Options) (*Outcome, error) {
	conv, err := o.start("", input)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Conversion: conv, Name: workspace.BaseName(input)}

	res, err := o.run(ctx, input)
	if err != nil {
		return out, o.fail(conv, err)
	}
	out.Result = res

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(res.Output), 0644); err != nil {
			return out, o.fail(conv, &convert.Error{Code: ErrWrite, Message: err.Error(), Cause: err})
		}
		conv.OutputPath = opts.Output
		if opts.WithReport {
			out.ReportPath = workspace.ReportPathFor(opts.Output)
			if err := workspace.WriteJSON(out.ReportPath, res.Report); err != nil {
				return out, o.fail(conv, &convert.Error{Code: ErrWrite, Message: err.Error(), Cause: err})
			}
		}
	}

	return out, o.complete(conv, res)
}

// Batch converts inputs in parallel into a new workspace under the outputs
// directory. A failed file is recorded and does not stop the others; only
// history or workspace failures abort the batch.
func (o *Orchestrator) Batch(ctx context.Context, inputs []string, jobs int) (*BatchResult, error) {
	if jobs < 1 {
		jobs = 1
	}
	batch := &BatchResult{ID: uuid.NewString(), Files: make([]*Outcome, len(inputs))}

	ws, err := workspace.Create(o.outputsDir, batch.ID)
	if err != nil {
		return nil, err
	}
	batch.Path = ws.Path
	logger := o.logger.With(zap.String("batch", batch.ID))
	logger.Info("starting batch", zap.Int("files", len(inputs)), zap.Int("jobs", jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, input := range inputs {
		g.Go(func() error {
			out, err := o.batchFile(ctx, ws, batch.ID, input)
			batch.Files[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return batch, err
	}

	meta := &workspace.Metadata{
		BatchID:      batch.ID,
		CreatedAt:    time.Now(),
		RulesVersion: o.converter.Rules().Version,
	}
	for _, out := range batch.Files {
		entry := workspace.FileEntry{
			Input:        out.Conversion.InputPath,
			ConversionID: out.Conversion.ID,
			Status:       string(out.Conversion.Status),
			ErrorCode:    out.Conversion.ErrorCode,
			Error:        out.Conversion.Error,
		}
		if out.Conversion.Failed() {
			batch.Failed++
		} else {
			entry.Name = out.Name
		}
		meta.Files = append(meta.Files, entry)
	}
	if err := ws.WriteMetadata(meta); err != nil {
		return batch, err
	}

	logger.Info("finished batch", zap.Int("files", len(inputs)), zap.Int("failed", batch.Failed))
	return batch, nil
}

// batchFile returns an error only when history could not be written.
func (o *Orchestrator) batchFile(ctx context.Context, ws *workspace.Workspace, batchID, input string) (*Outcome, error) {
	conv, err := o.start(batchID, input)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Conversion: conv}

	res, err := o.run(ctx, input)
	if err != nil {
		return out, o.record(conv, err)
	}
	out.Result = res

	name, err := o.hooks.OutputName(ctx, summarize(input, res))
	if err != nil {
		return out, o.record(conv, &convert.Error{Code: ErrHook, Message: err.Error(), Cause: err})
	}
	if name == "" {
		name = workspace.BaseName(input)
	}
	out.Name = ws.Claim(name)

	if conv.OutputPath, err = ws.WriteScript(out.Name, res.Output); err != nil {
		return out, o.record(conv, &convert.Error{Code: ErrWrite, Message: err.Error(), Cause: err})
	}
	if out.ReportPath, err = ws.WriteReport(out.Name, res.Report); err != nil {
		return out, o.record(conv, &convert.Error{Code: ErrWrite, Message: err.Error(), Cause: err})
	}

	return out, o.complete(conv, res)
}

// run converts the input file, then appends hook notes to the report.
func (o *Orchestrator) run(ctx context.Context, input string) (*convert.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := o.converter.ConvertFile(input)
	if err != nil {
		return nil, err
	}

	notes, err := o.hooks.Notes(ctx, summarize(input, res))
	if err != nil {
		return nil, &convert.Error{Code: ErrHook, Message: err.Error(), Cause: err}
	}
	res.Report.Notes = append(res.Report.Notes, notes...)

	return res, nil
}

func (o *Orchestrator) start(batchID, input string) (*models.Conversion, error) {
	conv := &models.Conversion{
		ID:        uuid.NewString(),
		BatchID:   batchID,
		InputPath: input,
		Status:    models.ConversionStatusRunning,
	}
	if err := o.storage.CreateConversion(conv); err != nil {
		return nil, fmt.Errorf("failed to create conversion record: %w", err)
	}
	return conv, nil
}

func (o *Orchestrator) complete(conv *models.Conversion, res *convert.Result) error {
	now := time.Now()
	conv.Status = models.ConversionStatusComplete
	conv.CompletedAt = &now
	conv.Shape = res.Shape
	conv.TopicCount = res.TopicCount
	conv.ActionCount = res.ActionCount
	conv.HasLegacyVariables = res.HasLegacyVariables

	if err := o.storage.UpdateConversion(conv); err != nil {
		return fmt.Errorf("failed to update conversion record: %w", err)
	}
	if err := o.storage.AddNotes(conv.ID, res.Report.Notes); err != nil {
		return fmt.Errorf("failed to store notes: %w", err)
	}

	o.logger.Debug("converted",
		zap.String("id", conv.ID),
		zap.String("input", conv.InputPath),
		zap.Int("topics", conv.TopicCount),
		zap.Int("actions", conv.ActionCount))
	return nil
}

// record marks conv failed. It returns an error only when the history
// update itself fails.
func (o *Orchestrator) record(conv *models.Conversion, cause error) error {
	now := time.Now()
	conv.Status = models.ConversionStatusFailed
	conv.CompletedAt = &now
	conv.ErrorCode = string(convert.CodeOf(cause))
	conv.Error = cause.Error()
	conv.OutputPath = ""

	o.logger.Warn("conversion failed",
		zap.String("id", conv.ID),
		zap.String("input", conv.InputPath),
		zap.String("code", conv.ErrorCode),
		zap.Error(cause))

	if err := o.storage.UpdateConversion(conv); err != nil {
		return fmt.Errorf("failed to update conversion record: %w", err)
	}
	return nil
}

// fail records cause and returns it, or the history error when recording
// failed too.
func (o *Orchestrator) fail(conv *models.Conversion, cause error) error {
	if err := o.record(conv, cause); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func summarize(input string, res *convert.Result) hooks.Summary {
	rep := res.Report
	s := hooks.Summary{
		Input:              input,
		Name:               rep.AgentInfo.Name,
		Label:              rep.AgentInfo.Label,
		TopicCount:         res.TopicCount,
		ActionCount:        res.ActionCount,
		HasLegacyVariables: res.HasLegacyVariables,
		Flagged:            len(rep.FlaggedActions),
	}
	for _, t := range rep.Topics {
		s.Topics = append(s.Topics, t.Key)
	}
	return s
}

// Read methods for the CLI and TUI

func (o *Orchestrator) ListConversions(limit int) ([]*models.Conversion, error) {
	return o.storage.ListConversions(limit)
}

func (o *Orchestrator) GetConversion(idOrPrefix string) (*models.Conversion, error) {
	id, err := o.storage.ResolveID(idOrPrefix)
	if err != nil {
		return nil, err
	}
	return o.storage.GetConversion(id)
}

func (o *Orchestrator) GetNotes(id string) ([]*models.ConversionNote, error) {
	return o.storage.GetNotes(id)
}

// ReadOutput returns the script written for a conversion.
func (o *Orchestrator) ReadOutput(conv *models.Conversion) (string, error) {
	if conv.OutputPath == "" {
		return "", fmt.Errorf("conversion %s has no output file", conv.ID)
	}
	data, err := os.ReadFile(conv.OutputPath)
	if err != nil {
		return "", fmt.Errorf("failed to read output: %w", err)
	}
	return string(data), nil
}

// DeleteConversion removes the history record. Output files are left alone.
func (o *Orchestrator) DeleteConversion(id string) error {
	return o.storage.DeleteConversion(id)
}
