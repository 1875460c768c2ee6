package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowlist(t *testing.T) {
	a := NewAllowlist([]int64{100, 200})

	assert.True(t, a.IsAdmin(100))
	assert.True(t, a.IsAdmin(200))
	assert.False(t, a.IsAdmin(300))
}

func TestEmptyAllowlist(t *testing.T) {
	a := NewAllowlist(nil)
	assert.False(t, a.IsAdmin(100))
}
