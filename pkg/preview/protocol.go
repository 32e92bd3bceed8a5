// Package preview drives an embedded workflow editor through a JSON command channel.
package preview

import (
	"encoding/json"

	"github.com/dukex/flowport/pkg/models"
)

// Commands sent by the editor.
const (
	CommandReady    = "n8nReady"
	CommandOpenNDV  = "openNDV"
	CommandCloseNDV = "closeNDV"
	CommandError    = "error"
)

// Commands sent to the editor.
const (
	CommandOpenWorkflow       = "openWorkflow"
	CommandOpenExecution      = "openExecution"
	CommandSetActiveExecution = "setActiveExecution"
)

// ModeExecution is the preview mode that opens an execution view.
const ModeExecution = "execution"

type OpenWorkflowMessage struct {
	Command        string          `json:"command"`
	Workflow       json.RawMessage `json:"workflow"`
	CanOpenNDV     bool            `json:"canOpenNDV"`
	HideNodeIssues bool            `json:"hideNodeIssues"`
}

type OpenExecutionMessage struct {
	Command       string `json:"command"`
	ExecutionID   string `json:"executionId"`
	ExecutionMode string `json:"executionMode"`
	CanOpenNDV    bool   `json:"canOpenNDV"`
}

type SetActiveExecutionMessage struct {
	Command   string                   `json:"command"`
	Execution *models.ExecutionSummary `json:"execution"`
}

// Envelope is a decoded inbound message.
type Envelope struct {
	Command string
}

// Decode parses an inbound message. Only string-like payloads holding a JSON
// object with a string command are accepted; everything else reports false.
func Decode(payload any) (Envelope, bool) {
	var data []byte

	switch value := payload.(type) {
	case string:
		data = []byte(value)
	case []byte:
		data = value
	case json.RawMessage:
		data = value
	default:
		return Envelope{}, false
	}

	var fields map[string]json.RawMessage

	err := json.Unmarshal(data, &fields)
	if err != nil || fields == nil {
		return Envelope{}, false
	}

	raw, ok := fields["command"]
	if !ok {
		return Envelope{}, false
	}

	var command string

	err = json.Unmarshal(raw, &command)
	if err != nil {
		return Envelope{}, false
	}

	return Envelope{Command: command}, true
}
