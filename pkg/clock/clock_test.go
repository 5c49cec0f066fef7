package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeAdvanceFiresDueTimers(t *testing.T) {
	fc := NewFake(time.Unix(0, 0))

	fired := 0
	fc.AfterFunc(time.Minute, func() { fired++ })
	fc.AfterFunc(time.Hour, func() { fired += 10 })

	fc.Advance(time.Minute)
	assert.Equal(t, 1, fired)

	fc.Advance(58 * time.Minute)
	assert.Equal(t, 1, fired)

	fc.Advance(time.Minute)
	assert.Equal(t, 11, fired)
}

func TestFakeStopPreventsFiring(t *testing.T) {
	fc := NewFake(time.Unix(0, 0))

	fired := false
	timer := fc.AfterFunc(time.Minute, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports already stopped")

	fc.Advance(2 * time.Minute)
	assert.False(t, fired)
}

func TestFakeNowAdvances(t *testing.T) {
	start := time.Unix(100, 0)
	fc := NewFake(start)

	fc.Advance(30 * time.Second)
	assert.Equal(t, start.Add(30*time.Second), fc.Now())
}
