package preview

import (
	"encoding/json"
	"net/url"
	"strconv"
)

// Props is what the host asks the editor to show.
type Props struct {
	// Workflow is the workflow document as JSON. It is only opened when it is an
	// object with a non-empty nodes array.
	Workflow       json.RawMessage
	ExecutionID    string
	ExecutionMode  string
	Mode           string
	CanOpenNDV     *bool
	HideNodeIssues *bool
}

func (p Props) canOpenNDV() bool {
	if p.CanOpenNDV == nil {
		return true
	}

	return *p.CanOpenNDV
}

func (p Props) hideNodeIssues() bool {
	if p.HideNodeIssues == nil {
		return false
	}

	return *p.HideNodeIssues
}

// hasNodes reports whether the workflow is an object whose nodes field is a non-empty array.
func (p Props) hasNodes() bool {
	if len(p.Workflow) == 0 {
		return false
	}

	var fields map[string]json.RawMessage

	err := json.Unmarshal(p.Workflow, &fields)
	if err != nil {
		return false
	}

	raw, ok := fields["nodes"]
	if !ok {
		return false
	}

	var nodes []json.RawMessage

	err = json.Unmarshal(raw, &nodes)
	if err != nil {
		return false
	}

	return len(nodes) > 0
}

// PropsFromQuery reads the display flags and execution mode from URL query values.
// Malformed booleans are treated as absent.
func PropsFromQuery(query url.Values) Props {
	props := Props{
		Mode:          query.Get("mode"),
		ExecutionMode: query.Get("executionMode"),
	}

	props.CanOpenNDV = parseFlag(query.Get("canOpenNDV"))
	props.HideNodeIssues = parseFlag(query.Get("hideNodeIssues"))

	return props
}

func parseFlag(value string) *bool {
	if value == "" {
		return nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil
	}

	return &parsed
}

// State is the UI state of one preview.
type State struct {
	Ready   bool
	NDVOpen bool
}

const (
	ContainerClass        = "workflow-preview"
	ContainerClassNDVOpen = "workflow-preview--ndv-open"
)

// ContainerClasses returns the presentation classes of the preview container.
func (s State) ContainerClasses() []string {
	if s.NDVOpen {
		return []string{ContainerClass, ContainerClassNDVOpen}
	}

	return []string{ContainerClass}
}
