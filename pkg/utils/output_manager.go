package utils

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// OutputManager lays out published files as <base>/<runID>/<file>.
type OutputManager struct {
	BaseOutputDir string
}

func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// CreateRunOutputDir creates the directory holding a run's outputs.
func (om *OutputManager) CreateRunOutputDir(runID string) (string, error) {
	if runID == "" || runID == "." || runID == ".." || filepath.Base(runID) != runID {
		return "", errors.Errorf("invalid run id %q", runID)
	}
	runDir := filepath.Join(om.BaseOutputDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create run output directory")
	}
	return runDir, nil
}

// GetOutputFilePath returns the path of fileName inside the run directory,
// creating the directory if needed. Path separators in fileName are
// dropped.
func (om *OutputManager) GetOutputFilePath(runID, fileName string) (string, error) {
	runDir, err := om.CreateRunOutputDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(runDir, filepath.Base(fileName)), nil
}
