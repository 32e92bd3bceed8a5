package importer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates the input does not have the shape of a workflow export.
	ErrInvalidInput = errors.New("invalid import input")

	// ErrNotADirectory indicates separate mode was given a path that is not a directory.
	ErrNotADirectory = errors.New("not a directory")

	ErrOwnerRoleNotFound = errors.New("owner workflow role not found")

	ErrUserNotFound = errors.New("user not found")
)

const (
	StageOptions   = "options"
	StageLoad      = "load"
	StageValidate  = "validate"
	StageOwnership = "ownership"
	StageSnapshot  = "snapshot"
	StageTags      = "tags"
	StagePersist   = "persist"
)

// ImportError records the pipeline stage an import failed in and the file or workflow involved.
type ImportError struct {
	Stage  string
	Source string
	Err    error
}

func (e *ImportError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("import failed at %s: %v", e.Stage, e.Err)
	}

	return fmt.Sprintf("import failed at %s (%s): %v", e.Stage, e.Source, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

func (e *ImportError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newImportError(stage, source string, err error) *ImportError {
	return &ImportError{Stage: stage, Source: source, Err: err}
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsNotADirectory(err error) bool {
	return errors.Is(err, ErrNotADirectory)
}

func IsOwnerRoleNotFound(err error) bool {
	return errors.Is(err, ErrOwnerRoleNotFound)
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
