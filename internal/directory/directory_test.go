package directory

import (
	"context"
	"testing"

	"github.com/psicapp/riskwatch/internal/models"
	"github.com/psicapp/riskwatch/internal/repository"
	"github.com/psicapp/riskwatch/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminDirectory_ListAdmins(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewBlobStore(storage.NewMemoryStorage()).Repositories()
	dir := NewAdminDirectory(repos.Profiles)

	admins, err := dir.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Empty(t, admins)

	require.NoError(t, repos.Profiles.Upsert(ctx, &models.Profile{ID: "a1", Role: models.RoleAdmin}))
	require.NoError(t, repos.Profiles.Upsert(ctx, &models.Profile{ID: "u1", Role: models.RoleUser}))
	require.NoError(t, repos.Profiles.Upsert(ctx, &models.Profile{ID: "a2", Role: models.RoleAdmin}))

	admins, err = dir.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.ElementsMatch(t, []string{"a1", "a2"}, []string{admins[0].ID, admins[1].ID})
}
