package engine

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorEmpty(t *testing.T) {
	var c Collector
	assert.NoError(t, c.Err("copy"))
	assert.Zero(t, c.Len())
}

func TestCollectorSingleWraps(t *testing.T) {
	sentinel := errors.New("disk full")
	var c Collector
	c.Record(sentinel)
	c.Record(nil) // ignored

	err := c.Err("copy")
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, c.Len())
}

func TestCollectorAggregateKeepsFirst(t *testing.T) {
	first := errors.New("first failure")
	var c Collector
	c.Record(first)
	c.Record(errors.New("second"))
	c.Record(errors.New("third"))

	err := c.Err("sync")
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.Contains(t, err.Error(), "3 errors")
}

func TestCollectorConcurrent(t *testing.T) {
	var c Collector
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Record(errors.New("boom"))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1600, c.Len())
}
