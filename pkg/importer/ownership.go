package importer

import (
	"context"
	"fmt"

	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/persistence"
)

// Ownership is the user and workflow role every imported workflow is shared with.
type Ownership struct {
	User *models.User
	Role *models.Role
}

// ResolveOwnership finds the workflow owner role and the assignee: the user with
// userID, or the instance owner when userID is empty.
func ResolveOwnership(ctx context.Context, repos persistence.Repositories, userID string) (*Ownership, error) {
	role, err := repos.Roles().FindByNameAndScope(ctx, models.RoleOwner, models.RoleScopeWorkflow)
	if persistence.IsRoleNotFound(err) {
		return nil, newImportError(StageOwnership, "", ErrOwnerRoleNotFound)
	}

	if err != nil {
		return nil, newImportError(StageOwnership, "", err)
	}

	user, err := findAssignee(ctx, repos, userID)
	if err != nil {
		return nil, newImportError(StageOwnership, userID, err)
	}

	return &Ownership{User: user, Role: role}, nil
}

func findAssignee(ctx context.Context, repos persistence.Repositories, userID string) (*models.User, error) {
	if userID != "" {
		user, err := repos.Users().GetByID(ctx, userID)
		if persistence.IsUserNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}

		return user, err
	}

	globalOwner, err := repos.Roles().FindByNameAndScope(ctx, models.RoleOwner, models.RoleScopeGlobal)
	if persistence.IsRoleNotFound(err) {
		return nil, fmt.Errorf("%w: instance has no global owner role", ErrUserNotFound)
	}

	if err != nil {
		return nil, err
	}

	owner, err := repos.Users().GetByGlobalRole(ctx, globalOwner.ID)
	if persistence.IsUserNotFound(err) {
		return nil, fmt.Errorf("%w: instance owner is not set up", ErrUserNotFound)
	}

	return owner, err
}
