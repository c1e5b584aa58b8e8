package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFunc(t *testing.T) {
	c := Fake(epoch)
	var fired []string
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	assert.Equal(t, 2, c.Pending())

	c.Advance(999 * time.Millisecond)
	assert.Empty(t, fired)

	c.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, epoch.Add(5999*time.Millisecond), c.Now())
}

func TestFakeStopAndReset(t *testing.T) {
	c := Fake(epoch)
	n := 0
	tm := c.AfterFunc(3*time.Second, func() { n++ })

	c.Advance(2 * time.Second)
	assert.True(t, tm.Reset(3*time.Second))
	c.Advance(2 * time.Second)
	assert.Equal(t, 0, n)
	c.Advance(time.Second)
	assert.Equal(t, 1, n)

	assert.False(t, tm.Stop())
	assert.False(t, tm.Reset(time.Second))
	assert.True(t, tm.Stop())
	c.Advance(time.Hour)
	assert.Equal(t, 1, n)
}

func TestFakeCallbackMayArmTimers(t *testing.T) {
	c := Fake(epoch)
	n := 0
	var tick func()
	tick = func() {
		n++
		if n < 3 {
			c.AfterFunc(0, tick)
		}
	}
	c.AfterFunc(time.Second, tick)
	c.Advance(time.Second)
	assert.Equal(t, 3, n)
}

func TestRealClock(t *testing.T) {
	done := make(chan struct{})
	Real().AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer never fired")
	}
}
