package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasRole(t *testing.T) {
	assert.False(t, HasRole(context.Background(), "manager"))

	ctx := WithUser(context.Background(), &UserContext{UserID: "u-1", Roles: []string{"pharmacist", "manager"}})
	assert.True(t, HasRole(ctx, "manager"))
	assert.False(t, HasRole(ctx, "admin"))
	assert.Equal(t, "u-1", GetUserID(ctx))
}
