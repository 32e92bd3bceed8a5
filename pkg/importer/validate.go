package importer

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const workflowsSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["nodes", "connections"],
		"properties": {
			"id": {"type": ["string", "integer", "null"]},
			"name": {"type": ["string", "null"]},
			"nodes": {"type": "array", "items": {"type": "object"}},
			"connections": {"type": "object"}
		}
	}
}`

var schema = mustCompile(workflowsSchema)

func mustCompile(source string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("invalid workflow import schema: %v", err))
	}

	return compiled
}

// ValidationResult is the outcome of checking raw input before any workflow is decoded.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(r.Errors, "; "))
}

// Validate checks that data is an array of objects that each carry nodes and connections.
func Validate(data []byte) ValidationResult {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return ValidationResult{Errors: []string{fmt.Sprintf("input is not valid JSON: %v", err)}}
	}

	if result.Valid() {
		return ValidationResult{Valid: true}
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}

	return ValidationResult{Errors: messages}
}
