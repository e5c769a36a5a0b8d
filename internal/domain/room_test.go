package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomGeneratesWellFormedCode(t *testing.T) {
	room, err := NewRoom()
	require.NoError(t, err)
	require.NotNil(t, room)

	assert.Len(t, room.Code, CodeLength)
	assert.True(t, IsValidCode(room.Code), "generated code %q should validate", room.Code)
	assert.False(t, room.CreatedAt.IsZero())
}

func TestNewRoomCodesVary(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		room, err := NewRoom()
		require.NoError(t, err)
		seen[room.Code] = true
	}

	// 50 draws from a 32^6 space colliding down to a handful of codes
	// would mean the generator is broken.
	assert.Greater(t, len(seen), 45)
}

func TestIsValidCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		{"valid code", "ABC234", true},
		{"too short", "ABC23", false},
		{"too long", "ABC2345", false},
		{"empty", "", false},
		{"lowercase", "abc234", false},
		{"ambiguous zero", "ABC230", false},
		{"ambiguous oh", "ABCO34", false},
		{"ambiguous one", "ABC214", false},
		{"ambiguous eye", "ABCI34", false},
		{"whitespace", "ABC 34", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidCode(tt.code))
		})
	}
}

func TestCodeCharsetExcludesAmbiguousCharacters(t *testing.T) {
	for _, c := range "01OI" {
		assert.False(t, strings.ContainsRune(codeChars, c), "charset should not contain %q", c)
	}
}
