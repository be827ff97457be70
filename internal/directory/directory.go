package directory

import (
	"context"
	"fmt"

	"github.com/psicapp/riskwatch/internal/models"
	"github.com/psicapp/riskwatch/internal/repository"
)

// AdminDirectory resolves the users currently holding the admin role
type AdminDirectory struct {
	profiles repository.ProfileRepo
}

// NewAdminDirectory creates a directory over the profiles collection
func NewAdminDirectory(profiles repository.ProfileRepo) *AdminDirectory {
	return &AdminDirectory{profiles: profiles}
}

// ListAdmins returns every admin profile. An empty result is not an error.
func (d *AdminDirectory) ListAdmins(ctx context.Context) ([]models.Profile, error) {
	admins, err := d.profiles.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to list administrators: %w", err)
	}
	return admins, nil
}
