package models

import "time"

// RoleScope is the kind of resource a role applies to.
type RoleScope string

const (
	RoleScopeGlobal     RoleScope = "global"
	RoleScopeWorkflow   RoleScope = "workflow"
	RoleScopeCredential RoleScope = "credential"
)

// RoleOwner is the name of the owner role in every scope.
const RoleOwner = "owner"

type Role struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Scope RoleScope `json:"scope"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	GlobalRoleID string    `json:"globalRoleId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SharedWorkflow grants a user a role on a workflow. (WorkflowID, UserID) is unique.
type SharedWorkflow struct {
	WorkflowID string    `json:"workflowId"`
	UserID     string    `json:"userId"`
	RoleID     string    `json:"roleId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
