package models

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeCredential_UnmarshalLegacyName(t *testing.T) {
	var node Node

	err := json.Unmarshal([]byte(`{"id":"n1","name":"HTTP","credentials":{"fooApi":"My Cred"}}`), &node)
	require.NoError(t, err)

	cred := node.Credentials["fooApi"]
	require.NotNil(t, cred)
	assert.True(t, cred.Legacy)
	assert.Nil(t, cred.ID)
	assert.Equal(t, "My Cred", cred.Name)
	assert.False(t, cred.Resolved())
}

func TestNodeCredential_UnmarshalResolvedPair(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantID   *string
		resolved bool
	}{
		{name: "with id", input: `{"id":"c1","name":"My Cred"}`, wantID: StringPtr("c1"), resolved: true},
		{name: "null id", input: `{"id":null,"name":"My Cred"}`, wantID: nil, resolved: false},
		{name: "missing id", input: `{"name":"My Cred"}`, wantID: nil, resolved: false},
		{name: "empty id", input: `{"id":"","name":"My Cred"}`, wantID: StringPtr(""), resolved: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cred NodeCredential

			require.NoError(t, json.Unmarshal([]byte(tt.input), &cred))
			assert.False(t, cred.Legacy)
			assert.Equal(t, tt.wantID, cred.ID)
			assert.Equal(t, tt.resolved, cred.Resolved())
		})
	}
}

func TestNodeCredential_UnmarshalRejectsOtherShapes(t *testing.T) {
	for _, input := range []string{`42`, `true`, `["a"]`} {
		var cred NodeCredential

		assert.Error(t, json.Unmarshal([]byte(input), &cred), input)
	}
}

func TestNodeCredential_MarshalAlwaysPair(t *testing.T) {
	legacy := &NodeCredential{Name: "My Cred", Legacy: true}

	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":null,"name":"My Cred"}`, string(data))

	legacy.ID = StringPtr("c1")

	data, err = json.Marshal(legacy)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"c1","name":"My Cred"}`, string(data))
}

func TestTag_UnmarshalBareName(t *testing.T) {
	var workflow Workflow

	err := json.Unmarshal([]byte(`{"name":"wf","tags":["billing",{"id":"t2","name":"ops"}]}`), &workflow)
	require.NoError(t, err)
	require.Len(t, workflow.Tags, 2)

	assert.Equal(t, "", workflow.Tags[0].ID)
	assert.Equal(t, "billing", workflow.Tags[0].Name)
	assert.Equal(t, "t2", workflow.Tags[1].ID)
	assert.Equal(t, "ops", workflow.Tags[1].Name)
	assert.Equal(t, []string{"t2"}, workflow.TagIDs())
}

func TestWorkflow_NodeByName(t *testing.T) {
	workflow := &Workflow{Nodes: []*Node{{ID: "1", Name: "Start"}, {ID: "2", Name: "Send"}}}

	require.NotNil(t, workflow.NodeByName("Send"))
	assert.Equal(t, "2", workflow.NodeByName("Send").ID)
	assert.Nil(t, workflow.NodeByName("Missing"))
}

func TestCredential_Validation(t *testing.T) {
	validate := validator.New()

	assert.NoError(t, validate.Struct(&Credential{Name: "My Cred", Type: "fooApi"}))

	err := validate.Struct(&Credential{Name: "My Cred"})
	require.Error(t, err)

	var validationErrors validator.ValidationErrors

	require.ErrorAs(t, err, &validationErrors)
	assert.Equal(t, "Type", validationErrors[0].Field())
	assert.Equal(t, "required", validationErrors[0].Tag())
}

func TestWorkflow_UnmarshalID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "string", input: `{"id":"wf-1"}`, want: "wf-1"},
		{name: "integer", input: `{"id":7}`, want: "7"},
		{name: "null", input: `{"id":null}`, want: ""},
		{name: "missing", input: `{"name":"x"}`, want: ""},
		{name: "fraction", input: `{"id":1.5}`, wantErr: true},
		{name: "boolean", input: `{"id":true}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var workflow Workflow

			err := json.Unmarshal([]byte(tt.input), &workflow)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, workflow.ID)
		})
	}
}
