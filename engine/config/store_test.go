package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore(Default())
	snap := s.Snapshot()
	snap.EnableFilter = true
	snap.FilterChannels[0] = false
	assert.False(t, s.Snapshot().EnableFilter)
	assert.True(t, s.Snapshot().FilterChannels[0])
}

func TestUpdateIsVisibleToLaterSnapshots(t *testing.T) {
	s := NewStore(Default())
	s.Update(func(c *Config) { c.EnableColorCloud = true })
	assert.True(t, s.Snapshot().EnableColorCloud)
}

func TestConcurrentUpdatesAndSnapshots(t *testing.T) {
	s := NewStore(Default())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Update(func(c *Config) { c.Rotate(0.01, 0) })
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Snapshot().ProjectionMatrix()
			}
		}()
	}
	wg.Wait()
}

func TestSubscribeDeliversLatestValue(t *testing.T) {
	s := NewStore(Default())
	ch, cancel := s.Subscribe()

	s.Update(func(c *Config) { c.HistogramScale = 0.1 })
	s.Update(func(c *Config) { c.HistogramScale = 0.2 })
	s.Update(func(c *Config) { c.HistogramScale = 0.3 })

	got := <-ch
	assert.Equal(t, float32(0.3), got.HistogramScale)

	cancel()
	cancel()
	_, open := <-ch
	require.False(t, open)

	// updates after cancel do not block or panic
	s.Update(func(c *Config) { c.ShowGrid = true })
}
