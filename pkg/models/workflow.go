// Package models defines the domain models shared by the import pipeline, the preview bridge and the API.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Workflow is a workflow definition as exported by the editor.
// Connections, settings and the other editor-owned fields are kept as opaque JSON.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Active      bool           `json:"active"`
	Nodes       []*Node        `json:"nodes"`
	Connections map[string]any `json:"connections"`
	Settings    map[string]any `json:"settings,omitempty"`
	StaticData  any            `json:"staticData,omitempty"`
	PinData     map[string]any `json:"pinData,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	Tags        []*Tag         `json:"tags,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type workflowFields Workflow

// UnmarshalJSON also accepts the numeric ids of older exports and keeps them as
// their decimal string.
func (w *Workflow) UnmarshalJSON(data []byte) error {
	aux := struct {
		ID json.RawMessage `json:"id"`
		*workflowFields
	}{workflowFields: (*workflowFields)(w)}

	err := json.Unmarshal(data, &aux)
	if err != nil {
		return err
	}

	id := bytes.TrimSpace(aux.ID)

	switch {
	case len(id) == 0 || bytes.Equal(id, []byte("null")):
		w.ID = ""
	case id[0] == '"':
		return json.Unmarshal(id, &w.ID)
	default:
		var number json.Number

		err := json.Unmarshal(id, &number)
		if err != nil {
			return fmt.Errorf("workflow id must be a string or an integer: %w", err)
		}

		if _, err := number.Int64(); err != nil {
			return fmt.Errorf("workflow id must be a string or an integer: %s", id)
		}

		w.ID = number.String()
	}

	return nil
}

// Node is a single step of a workflow.
type Node struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	Type        string                     `json:"type"`
	TypeVersion float64                    `json:"typeVersion"`
	Position    []float64                  `json:"position"`
	Parameters  map[string]any             `json:"parameters"`
	Credentials map[string]*NodeCredential `json:"credentials,omitempty"`
	Disabled    bool                       `json:"disabled,omitempty"`
	Notes       string                     `json:"notes,omitempty"`
}

// NodeByName returns the node with the given name or nil.
func (w *Workflow) NodeByName(name string) *Node {
	for _, node := range w.Nodes {
		if node.Name == name {
			return node
		}
	}

	return nil
}

// TagIDs returns the ids of the tags attached to the workflow, skipping unsaved ones.
func (w *Workflow) TagIDs() []string {
	ids := make([]string, 0, len(w.Tags))

	for _, tag := range w.Tags {
		if tag.ID != "" {
			ids = append(ids, tag.ID)
		}
	}

	return ids
}
