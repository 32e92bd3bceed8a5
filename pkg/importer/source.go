package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dukex/flowport/pkg/models"
)

// LoadFile reads a workflow export. A file holding a single workflow object is
// returned as a one-element array.
func LoadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newImportError(StageLoad, path, err)
	}

	return normalize(data), nil
}

// LoadDirectory reads every *.json file of dir, in name order, as one workflow each
// and returns them as a JSON array.
func LoadDirectory(dir string) ([]byte, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, newImportError(StageLoad, dir, err)
	}

	if !info.IsDir() {
		return nil, newImportError(StageLoad, dir, ErrNotADirectory)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, newImportError(StageLoad, dir, err)
	}

	documents := make([]json.RawMessage, 0, len(files))

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, newImportError(StageLoad, file, err)
		}

		if !json.Valid(data) {
			return nil, newImportError(StageValidate, file, fmt.Errorf("%w: file is not valid JSON", ErrInvalidInput))
		}

		documents = append(documents, bytes.TrimSpace(data))
	}

	combined, err := json.Marshal(documents)
	if err != nil {
		return nil, newImportError(StageLoad, dir, err)
	}

	return combined, nil
}

// DecodeWorkflows validates data and decodes it into workflows.
// A single workflow object is accepted and treated as a one-element array.
func DecodeWorkflows(data []byte) ([]*models.Workflow, error) {
	data = normalize(data)

	err := Validate(data).Err()
	if err != nil {
		return nil, newImportError(StageValidate, "", err)
	}

	var workflows []*models.Workflow

	err = json.Unmarshal(data, &workflows)
	if err != nil {
		return nil, newImportError(StageValidate, "", fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}

	return workflows, nil
}

func normalize(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		wrapped := make([]byte, 0, len(trimmed)+2)
		wrapped = append(wrapped, '[')
		wrapped = append(wrapped, trimmed...)

		return append(wrapped, ']')
	}

	return trimmed
}
