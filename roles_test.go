package auth_test

import (
	"testing"

	auth "github.com/folio-cms/go-admin-auth"
	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	role, ok := auth.ParseRole(" Editor ")
	assert.True(t, ok)
	assert.Equal(t, auth.RoleEditor, role)

	_, ok = auth.ParseRole("owner")
	assert.False(t, ok)
}

func TestRoleSet(t *testing.T) {
	set := auth.RoleSetFromStrings([]string{" ADMIN ", "", "reviewer"})

	assert.True(t, set.Allows(auth.RoleAdmin))
	assert.False(t, set.Allows(auth.RoleEditor))
	assert.True(t, set.Allows("reviewer"))
	assert.False(t, set.Allows(""))
	assert.Equal(t, []auth.Role{auth.RoleAdmin, "reviewer"}, set.Roles())

	defaults := auth.DefaultAllowedRoles()
	assert.Equal(t, []auth.Role{auth.RoleAdmin, auth.RoleEditor}, defaults.Roles())
}
