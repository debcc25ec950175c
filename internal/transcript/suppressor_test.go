package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSuppressorExactRepeat(t *testing.T) {
	t.Parallel()

	d := NewDuplicateSuppressor(0.85, 4.0)
	assert.False(t, d.ShouldSuppress("hello world"))
	assert.True(t, d.ShouldSuppress("hello world"))
}

func TestSuppressorNearDuplicate(t *testing.T) {
	t.Parallel()

	d := NewDuplicateSuppressor(0.85, 4.0)
	assert.False(t, d.ShouldSuppress("hello world"))
	assert.True(t, d.ShouldSuppress("hello worlds"))
}

func TestSuppressorDistinctTextPasses(t *testing.T) {
	t.Parallel()

	d := NewDuplicateSuppressor(0.85, 4.0)
	assert.False(t, d.ShouldSuppress("hello world"))
	assert.False(t, d.ShouldSuppress("completely different sentence"))
}

func TestSuppressorCooldownExpiry(t *testing.T) {
	t.Parallel()

	d := NewDuplicateSuppressor(0.85, 0.05)
	assert.False(t, d.ShouldSuppress("hello world"))

	time.Sleep(80 * time.Millisecond)
	assert.False(t, d.ShouldSuppress("hello world"))
}

func TestSuppressorWindowBounded(t *testing.T) {
	t.Parallel()

	d := NewDuplicateSuppressor(0.85, 60.0)
	assert.False(t, d.ShouldSuppress("the target sentence"))

	// six fresh emissions push the target out of the window
	fillers := []string{
		"good morning everyone",
		"the weather is nice today",
		"please open the window",
		"music was playing loudly",
		"see you tomorrow afternoon",
		"that was a great meal",
	}
	for _, f := range fillers {
		assert.False(t, d.ShouldSuppress(f))
	}
	assert.False(t, d.ShouldSuppress("the target sentence"))
}

func TestSuppressorEmptyCandidate(t *testing.T) {
	t.Parallel()

	d := NewDuplicateSuppressor(0.85, 4.0)
	assert.False(t, d.ShouldSuppress(""))
}
