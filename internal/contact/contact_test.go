package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "0771234567", NormalizePhone("077-123 4567"))
	assert.Equal(t, "0771234567", NormalizePhone("077 123 4567"))
	assert.Equal(t, "+94771234567", NormalizePhone(" +94 77 123 4567 "))
	assert.Equal(t, "94771234567", NormalizePhone("94+771234567"))
	assert.Empty(t, NormalizePhone(""))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "nimal@example.com", NormalizeEmail("  Nimal@Example.COM "))
	assert.Empty(t, NormalizeEmail("   "))
}
