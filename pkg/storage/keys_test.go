package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/oauthkit/pkg/storage"
)

func TestUserKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		id       string
		expected string
	}{
		{
			name:     "plain id",
			id:       "789",
			expected: "vendor-user/789",
		},
		{
			name:     "id with slash",
			id:       "team/42",
			expected: "vendor-user/team%2F42",
		},
		{
			name:     "id with space",
			id:       "a b",
			expected: "vendor-user/a%20b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, storage.UserKey(tt.id))
		})
	}
}

func TestForeignUserKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "foreign-vendor-user/foobar/u123", storage.ForeignUserKey("foobar", "u123"))
	assert.Equal(t, "foreign-vendor-user/a%2Fb/c%2Fd", storage.ForeignUserKey("a/b", "c/d"))
}
