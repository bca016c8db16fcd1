package auth

import (
	"context"
	"testing"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckOwnership(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		uid  uint64
		code int32
	}{
		{name: "owner", ctx: WithUser(context.Background(), 5, RoleUser), uid: 5},
		{name: "admin", ctx: WithUser(context.Background(), 1, RoleAdmin), uid: 5},
		{name: "other user", ctx: WithUser(context.Background(), 6, RoleUser), uid: 5, code: 403},
		{name: "anonymous", ctx: context.Background(), uid: 5, code: 401},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckOwnership(tt.ctx, tt.uid)
			if tt.code == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.FromError(err).Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	assert.NoError(t, RequireAdmin(WithUser(context.Background(), 1, RoleAdmin)))
	assert.Equal(t, int32(403), errors.FromError(RequireAdmin(WithUser(context.Background(), 5, RoleUser))).Code)
	assert.Equal(t, int32(401), errors.FromError(RequireAdmin(context.Background())).Code)

	_, err := RequireUser(WithUser(context.Background(), 0, RoleUser))
	assert.Error(t, err)
}
