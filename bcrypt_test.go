package auth_test

import (
	"strings"
	"testing"

	auth "github.com/folio-cms/go-admin-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherHashPassword(t *testing.T) {
	hash, err := testHasher.HashPassword(testPassword)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	again, err := testHasher.HashPassword(testPassword)
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "each hash carries its own salt")

	_, err = testHasher.HashPassword("")
	assert.ErrorIs(t, err, auth.ErrNoEmptyString)
}

func TestBcryptHasherCompare(t *testing.T) {
	hash, err := testHasher.HashPassword(testPassword)
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		mismatch bool
		wantErr  bool
	}{
		{name: "matching", password: testPassword, hash: hash},
		{name: "wrong password", password: "Wr0ng$Horse", hash: hash, mismatch: true, wantErr: true},
		{name: "empty password", password: "", hash: hash, mismatch: true, wantErr: true},
		{name: "empty hash", password: testPassword, hash: "", mismatch: true, wantErr: true},
		{name: "invalid hash", password: testPassword, hash: "invalidhash", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testHasher.ComparePasswordAndHash(tt.password, tt.hash)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.mismatch {
				assert.Equal(t, auth.ErrMismatchedHashAndPassword, err)
			}
		})
	}
}

func TestPackageLevelHashHelpers(t *testing.T) {
	hash, err := auth.HashPassword("securePassword123!")
	require.NoError(t, err)
	assert.NoError(t, auth.ComparePasswordAndHash("securePassword123!", hash))

	_, err = auth.HashPassword("")
	assert.Error(t, err)
}
