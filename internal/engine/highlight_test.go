package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// echoDrawable fires its highlight callback whenever its state is set,
// like a chart series raising its own hover event.
type echoDrawable struct {
	on       bool
	sets     int
	callback func(bool)
}

func (d *echoDrawable) SetHighlighted(on bool) {
	d.sets++
	d.on = on
	if d.callback != nil {
		d.callback(on)
	}
}

func TestHighlightSync_MirrorsAcrossDrawables(t *testing.T) {
	left := &echoDrawable{}
	right := &echoDrawable{}
	sync := NewHighlightSync(left, right)
	left.callback = sync.OnHighlight
	right.callback = sync.OnHighlight

	sync.OnHighlight(true)

	assert.True(t, left.on)
	assert.True(t, right.on)
	assert.Equal(t, 1, left.sets, "feedback must not re-set the drawable")
	assert.Equal(t, 1, right.sets)
	assert.Equal(t, int64(1), sync.Mirrored())

	sync.OnHighlight(false)
	assert.False(t, left.on)
	assert.False(t, right.on)
	assert.Equal(t, int64(2), sync.Mirrored())
}

func TestHighlightSync_TriggeredFromDrawable(t *testing.T) {
	left := &echoDrawable{}
	right := &echoDrawable{}
	sync := NewHighlightSync()
	sync.Link(left)
	sync.Link(right)
	left.callback = sync.OnHighlight
	right.callback = sync.OnHighlight

	// A hover on the right trace lands in its own callback first.
	right.callback(true)

	assert.True(t, left.on)
	assert.True(t, right.on)
	assert.Equal(t, int64(1), sync.Mirrored())
}

func TestHighlightSync_NoTargets(t *testing.T) {
	sync := NewHighlightSync()
	sync.OnHighlight(true)
	assert.Equal(t, int64(1), sync.Mirrored())
}
