package clock_test

import (
	"testing"
	"time"

	"github.com/docseal/docseal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFake_NowStandsStill(t *testing.T) {
	c := clock.Fake(epoch)
	assert.Equal(t, epoch, c.Now())
	assert.Equal(t, epoch, c.Now())

	c.Advance(time.Minute)
	assert.Equal(t, epoch.Add(time.Minute), c.Now())
}

func TestFake_AutoAdvance(t *testing.T) {
	c := clock.Fake(epoch)
	c.AutoAdvance(time.Second)

	first := c.Now()
	second := c.Now()
	assert.Equal(t, epoch, first)
	assert.Equal(t, epoch.Add(time.Second), second)
}

func TestFake_After(t *testing.T) {
	c := clock.Fake(epoch)
	ch := c.After(10 * time.Millisecond)
	require.Equal(t, 1, c.Pending())

	select {
	case <-ch:
		t.Fatal("fired before advance")
	default:
	}

	c.Advance(10 * time.Millisecond)
	select {
	case fired := <-ch:
		assert.Equal(t, epoch.Add(10*time.Millisecond), fired)
	default:
		t.Fatal("did not fire after advance")
	}
	assert.Equal(t, 0, c.Pending())
}

func TestFake_AfterNonPositive(t *testing.T) {
	c := clock.Fake(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("zero duration should fire immediately")
	}
}

func TestReal(t *testing.T) {
	c := clock.Real()
	assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
	<-c.After(time.Millisecond)
}
