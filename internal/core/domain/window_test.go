package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBounds_IsZero(t *testing.T) {
	assert.True(t, Bounds{}.IsZero())
	assert.True(t, Bounds{X: 10, Y: 20}.IsZero())
	assert.False(t, Bounds{Width: 800, Height: 600}.IsZero())
	assert.False(t, Bounds{Width: 1}.IsZero())
}

func TestWindowChanges_Empty(t *testing.T) {
	var c WindowChanges
	assert.True(t, c.Empty())

	c = WindowChanges{Created: []Window{{ID: 1}}}
	assert.False(t, c.Empty())

	c = WindowChanges{Destroyed: []WindowID{1}}
	assert.False(t, c.Empty())

	c = WindowChanges{TitleChanged: []Window{{ID: 1}}}
	assert.False(t, c.Empty())

	c = WindowChanges{FocusChanged: &Window{ID: 1}}
	assert.False(t, c.Empty())
}
