package filter

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainNilMatchesEverything(t *testing.T) {
	var c *Chain
	assert.True(t, c.Match("/any/path"))
	assert.True(t, c.Empty())

	c = New(nil, nil)
	assert.True(t, c.Match("/any/path"))
	assert.True(t, c.Empty())
}

func TestChainIncludeMustMatch(t *testing.T) {
	c := New(regexp.MustCompile(`\.txt$`), nil)

	assert.True(t, c.Match("/src/notes.txt"))
	assert.False(t, c.Match("/src/image.png"))
}

func TestChainExcludeMustNotMatch(t *testing.T) {
	c := New(nil, regexp.MustCompile(`/\.git/`))

	assert.True(t, c.Match("/src/main.go"))
	assert.False(t, c.Match("/src/.git/config"))
}

func TestChainIncludeThenExclude(t *testing.T) {
	c := New(regexp.MustCompile(`\.log$`), regexp.MustCompile(`debug`))

	assert.True(t, c.Match("/var/app.log"))
	assert.False(t, c.Match("/var/debug.log")) // include matches, exclude wins
	assert.False(t, c.Match("/var/app.txt"))   // include misses
}
