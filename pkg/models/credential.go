package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var errInvalidCredentialReference = errors.New("credential reference must be a string or an object")

// NodeCredential is a node's reference to a stored credential.
//
// Older exports reference credentials by bare name. Those decode with Legacy set and
// a nil ID until the importer resolves them. The encoded form is always {"id", "name"}.
type NodeCredential struct {
	ID     *string `json:"id"`
	Name   string  `json:"name"`
	Legacy bool    `json:"-"`
}

type nodeCredentialFields NodeCredential

func (c *NodeCredential) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errInvalidCredentialReference
	}

	switch trimmed[0] {
	case '"':
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return err
		}

		*c = NodeCredential{Name: name, Legacy: true}

		return nil
	case '{':
		var fields nodeCredentialFields
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return err
		}

		*c = NodeCredential(fields)
		c.Legacy = false

		return nil
	default:
		return fmt.Errorf("%w: %s", errInvalidCredentialReference, trimmed)
	}
}

// Resolved reports whether the reference points at a credential id.
func (c *NodeCredential) Resolved() bool {
	return c != nil && c.ID != nil && *c.ID != ""
}

// Credential is a stored credential. Data holds the encrypted secret and is never decoded here.
type Credential struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"      validate:"required"`
	Type      string    `json:"type"      validate:"required"`
	Data      string    `json:"data,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
