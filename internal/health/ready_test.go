package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadiness(t *testing.T) {
	r := New("tcp")
	r.Require("redis")
	r.Require("tcp")
	assert.False(t, r.Ready())
	assert.Equal(t, []string{"redis", "tcp"}, r.Pending())

	r.Set("tcp", true)
	assert.False(t, r.Ready())
	r.Set("redis", true)
	assert.True(t, r.Ready())
	assert.Empty(t, r.Pending())

	r.Set("serial", false)
	assert.False(t, r.Ready())
}

func TestReadiness_EmptyIsReady(t *testing.T) {
	assert.True(t, New().Ready())
}
