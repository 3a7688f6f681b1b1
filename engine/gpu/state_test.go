package gpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrierApply(t *testing.T) {
	buf := NewBuffer(BufferDescriptor{Label: "counter", Size: 16, InitialState: StateShaderResource}, nil)

	require.NoError(t, Transition(buf, StateShaderResource, StateUnorderedAccess).Apply())
	assert.Equal(t, StateUnorderedAccess, buf.State())

	err := Transition(buf, StateShaderResource, StateUnorderedAccess).Apply()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, StateUnorderedAccess, buf.State())
}

func TestBarrierWithoutResource(t *testing.T) {
	assert.ErrorIs(t, Barrier{}.Apply(), ErrInvalidTransition)
}

func TestResourceStateString(t *testing.T) {
	assert.Equal(t, "UnorderedAccess", StateUnorderedAccess.String())
	assert.Equal(t, "ResourceState(42)", ResourceState(42).String())
}

func TestCommandListBarrierIsAllOrNothing(t *testing.T) {
	a := NewBuffer(BufferDescriptor{Label: "a", InitialState: StateShaderResource}, nil)
	b := NewBuffer(BufferDescriptor{Label: "b", InitialState: StateUnorderedAccess}, nil)
	l := NewCommandList()

	err := l.ResourceBarrier(
		Transition(a, StateShaderResource, StateUnorderedAccess),
		Transition(b, StateShaderResource, StateUnorderedAccess),
	)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateShaderResource, a.State())
	assert.Equal(t, 0, l.Len())

	require.NoError(t, l.ResourceBarrier(Transition(a, StateShaderResource, StateUnorderedAccess)))
	assert.Equal(t, 1, l.Len())
}

func TestCommandListClose(t *testing.T) {
	l := NewCommandList()
	l.Record(Command{Kind: CmdDraw, Counts: [3]uint32{3, 1}})
	closed := l.Close()

	require.Len(t, closed.Commands(), 1)
	assert.Equal(t, CmdDraw, closed.Commands()[0].Kind)
	assert.PanicsWithValue(t, "command list closed", func() { l.Record(Command{Kind: CmdDraw}) })
	assert.Panics(t, func() { l.Close() })
}

func TestRwBufferViews(t *testing.T) {
	heap := NewDescriptorHeap(4)
	buf := NewBuffer(BufferDescriptor{Label: "hist", Size: 1024, InitialState: StateShaderResource}, nil)

	rw, err := NewRwBuffer(buf, 256, heap)
	require.NoError(t, err)
	assert.Equal(t, ViewSRV, rw.SRV.Kind)
	assert.Equal(t, ViewUAV, rw.UAV.Kind)
	assert.Equal(t, ViewRawUAV, rw.RawUAV.Kind)
	assert.Equal(t, []int{0, 1, 2}, []int{rw.SRV.Slot, rw.UAV.Slot, rw.RawUAV.Slot})
	assert.Equal(t, rw.UAV, heap.Get(1))

	_, err = NewRwBuffer(buf, 256, heap)
	var resErr *ResourceError
	require.ErrorAs(t, err, &resErr)

	_, err = NewRwBuffer(buf, 1024, NewDescriptorHeap(4))
	require.Error(t, err)
}
