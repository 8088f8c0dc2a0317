package rbac_test

import (
	"testing"

	"github.com/pilab-dev/planauth/domain"
	"github.com/pilab-dev/planauth/internal/auth/rbac"
	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role string
		perm string
		want bool
	}{
		{domain.RoleAdmin, rbac.PermUsersDeleteAll, true},
		{domain.RoleEditor, rbac.PermUsersDeleteAll, false},
		{domain.RoleViewer, rbac.PermUsersDeleteAll, false},
		{domain.RoleUser, rbac.PermUsersDeleteAll, false},
		{"unknown", rbac.PermUsersDeleteAll, false},
		{domain.RoleAdmin, "sessions:clear_others", false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.perm, func(t *testing.T) {
			assert.Equal(t, tt.want, rbac.HasPermission(tt.role, tt.perm))
		})
	}
}
