package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Tag labels workflows. Names are unique.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type tagFields Tag

// UnmarshalJSON accepts a tag object or a bare tag name.
func (t *Tag) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return err
		}

		*t = Tag{Name: name}

		return nil
	}

	var fields tagFields
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return err
	}

	*t = Tag(fields)

	return nil
}
