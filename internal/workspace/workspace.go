package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	ScriptExt    = ".agent"
	ReportExt    = ".report.json"
	metadataFile = "metadata.json"
)

// Workspace is the output directory of one batch. Claim and the Write methods
// are safe for concurrent use.
type Workspace struct {
	Path string

	mu      sync.Mutex
	claimed map[string]bool
}

type Metadata struct {
	BatchID      string      `json:"batch_id"`
	CreatedAt    time.Time   `json:"created_at"`
	RulesVersion string      `json:"rules_version"`
	Files        []FileEntry `json:"files"`
}

type FileEntry struct {
	Input        string `json:"input"`
	Name         string `json:"name,omitempty"`
	ConversionID string `json:"conversion_id"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	Error        string `json:"error,omitempty"`
}

func Create(baseDir, batchID string) (*Workspace, error) {
	path := filepath.Join(baseDir, batchID)

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	return &Workspace{Path: path, claimed: make(map[string]bool)}, nil
}

func Open(baseDir, batchID string) (*Workspace, error) {
	path := filepath.Join(baseDir, batchID)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("workspace for batch %s does not exist", batchID)
	}

	return &Workspace{Path: path, claimed: make(map[string]bool)}, nil
}

// Claim reserves an output base name. A name that is already taken gets a
// numeric suffix.
func (w *Workspace) Claim(name string) string {
	name = SafeName(name)
	if name == "" {
		name = "agent"
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	candidate := name
	for i := 2; w.claimed[candidate]; i++ {
		candidate = fmt.Sprintf("%s-%d", name, i)
	}
	w.claimed[candidate] = true
	return candidate
}

func (w *Workspace) ScriptPath(name string) string {
	return filepath.Join(w.Path, name+ScriptExt)
}

func (w *Workspace) ReportPath(name string) string {
	return filepath.Join(w.Path, name+ReportExt)
}

func (w *Workspace) WriteScript(name, script string) (string, error) {
	path := w.ScriptPath(name)
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

func (w *Workspace) WriteReport(name string, report any) (string, error) {
	path := w.ReportPath(name)
	return path, WriteJSON(path, report)
}

func (w *Workspace) WriteMetadata(meta *Metadata) error {
	return WriteJSON(filepath.Join(w.Path, metadataFile), meta)
}

func (w *Workspace) ReadMetadata() (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(w.Path, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return &meta, nil
}

// WriteJSON writes v as indented JSON with a trailing newline.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	return nil
}

// ReportPathFor is the report file written next to a single output file.
func ReportPathFor(output string) string {
	return strings.TrimSuffix(output, ScriptExt) + ReportExt
}

// BaseName is the input file name without directory and extension.
func BaseName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SafeName keeps letters, digits, dot, dash and underscore, and never
// returns a name that starts with a dot.
func SafeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}
