package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskKVs(t *testing.T) {
	out := maskKVs([]interface{}{"email", "jane@example.com", "phone", "0771234567", "order", "ORD-000001", "jwt_token", "abc", "dangling"})
	assert.Equal(t, []interface{}{
		"email", "j***@example.com",
		"phone", "*******567",
		"order", "ORD-000001",
		"jwt_token", "[REDACTED]",
		"dangling",
	}, out)
}

func TestMaskEmail_Malformed(t *testing.T) {
	assert.Equal(t, "***", MaskEmail("nobody"))
	assert.Equal(t, "", MaskEmail(""))
}

func TestMaskPhone_Short(t *testing.T) {
	assert.Equal(t, "**", MaskPhone("12"))
}
