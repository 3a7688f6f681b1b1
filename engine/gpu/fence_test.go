package gpu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFence(t *testing.T) {
	f := NewFence()
	v := f.Next()
	assert.Equal(t, uint64(1), v)
	assert.Equal(t, uint64(2), f.Next())

	done := make(chan struct{})
	go func() {
		f.Wait(v)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("wait returned before the fence was signaled")
	case <-time.After(20 * time.Millisecond):
	}

	f.Signal(v)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not return after signal")
	}

	f.Signal(0)
	assert.Equal(t, v, f.Completed())
	f.Wait(v)
}
