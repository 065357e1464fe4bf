package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dd0wney/cluso-hydraulics/pkg/results"
)

// FileConfig configures the file exporter
type FileConfig struct {
	Dir    string `yaml:"dir" validate:"required"`
	Format string `yaml:"format" validate:"omitempty,oneof=json yaml archive csv"`
}

// FileExporter writes each run to <dir>/<fingerprint>/<run id><ext>
type FileExporter struct {
	dir    string
	format results.Format
}

// NewFileExporter creates the directory if needed
func NewFileExporter(cfg FileConfig) (*FileExporter, error) {
	format := results.FormatJSON
	if cfg.Format != "" {
		f, err := results.ParseFormat(cfg.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &FileExporter{dir: cfg.Dir, format: format}, nil
}

func (e *FileExporter) Name() string { return "file" }

// Path is where sim is written
func (e *FileExporter) Path(sim *results.Simulation) string {
	return filepath.Join(e.dir, filepath.FromSlash(objectName(sim, e.format)))
}

// Export writes to a temporary file and renames it into place
func (e *FileExporter) Export(ctx context.Context, sim *results.Simulation) error {
	if sim == nil {
		return ErrNoSimulation
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path := e.Path(sim)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := results.Encode(tmp, sim, e.format); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename export: %w", err)
	}
	return nil
}

func (e *FileExporter) Close() error { return nil }
