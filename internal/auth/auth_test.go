package auth

import (
	"context"
	"testing"

	"github.com/psicapp/riskwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextResolver(t *testing.T) {
	resolver := ContextResolver{}

	_, err := resolver.CurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = resolver.CurrentUser(WithUser(context.Background(), &models.User{}))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	user, err := resolver.CurrentUser(WithUser(context.Background(), &models.User{ID: "u1"}))
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestSystemContext(t *testing.T) {
	assert.False(t, IsSystem(context.Background()))
	assert.True(t, IsSystem(WithSystem(context.Background())))
}
