package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild_Deterministic(t *testing.T) {
	a := Build("user@example.com", "female", "1992-03-08", 14)
	b := Build("user@example.com", "female", "1992-03-08", 14)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestBuild_EmailNormalized(t *testing.T) {
	a := Build("User@Example.com ", "male", "1990-01-01", 6)
	b := Build("user@example.com", "male", "1990-01-01", 6)

	assert.Equal(t, a, b)
}

func TestBuild_SignificantFieldsChangeKey(t *testing.T) {
	base := Build("user@example.com", "male", "1990-01-01", 6)

	assert.NotEqual(t, base, Build("other@example.com", "male", "1990-01-01", 6))
	assert.NotEqual(t, base, Build("user@example.com", "female", "1990-01-01", 6))
	assert.NotEqual(t, base, Build("user@example.com", "male", "1990-01-02", 6))
	assert.NotEqual(t, base, Build("user@example.com", "male", "1990-01-01", 7))
}

func TestBuild_NoSeparatorCollisions(t *testing.T) {
	// Hour is the last canonical field, so adjacent numeric values must not
	// merge with the date field.
	a := Build("user@example.com", "male", "1990-01-01", 12)
	b := Build("user@example.com", "male", "1990-01-011", 2)

	assert.NotEqual(t, a, b)
}
