package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequired(t *testing.T) {
	v := Required()
	assert.Error(t, v(""))
	assert.Error(t, v("   "))
	assert.NoError(t, v("value"))
}

func TestLength(t *testing.T) {
	v := Length(6)
	assert.NoError(t, v("ABC234"))
	assert.Error(t, v("ABC23"))
	assert.Error(t, v("ABC2345"))
}

func TestMatches(t *testing.T) {
	v := Matches("^[A-Z0-9]+$", "must be upper case alphanumeric")
	assert.NoError(t, v("ABC123"))
	assert.Error(t, v("abc123"))
	assert.NoError(t, v(""), "empty values are left to Required")
}

func TestFieldPrefixesName(t *testing.T) {
	v := Field("room", Required())
	err := v("")
	assert.ErrorContains(t, err, "room")
}

func TestComposeFirstErrorWins(t *testing.T) {
	v := Compose(Length(3), Matches("^[0-9]+$", "digits only"))
	err := v("abcd")
	assert.ErrorContains(t, err, "3 characters")
}
