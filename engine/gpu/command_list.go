package gpu

import "fmt"

// Stage selects which pipeline stage a binding applies to.
type Stage uint8

const (
	StageCompute Stage = iota
	StageGraphics
)

// Viewport is a rectangle of the render target in pixels plus a depth range.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// CommandKind identifies a recorded command.
type CommandKind uint8

const (
	CmdBarrier CommandKind = iota
	CmdSetPipeline
	CmdSetRenderTarget
	CmdSetViewport
	CmdSetScissor
	CmdSetConstants
	CmdSetSRVTable
	CmdSetUAVTable
	CmdSetSharedSRV
	CmdSetVertexBuffer
	CmdClearRenderTarget
	CmdClearDepth
	CmdClearUAV
	CmdDraw
	CmdDispatch
	CmdDispatchMesh
	CmdTimestamp
	CmdResolveTimestamps
)

var commandNames = [...]string{
	CmdBarrier:           "Barrier",
	CmdSetPipeline:       "SetPipeline",
	CmdSetRenderTarget:   "SetRenderTarget",
	CmdSetViewport:       "SetViewport",
	CmdSetScissor:        "SetScissor",
	CmdSetConstants:      "SetConstants",
	CmdSetSRVTable:       "SetSRVTable",
	CmdSetUAVTable:       "SetUAVTable",
	CmdSetSharedSRV:      "SetSharedSRV",
	CmdSetVertexBuffer:   "SetVertexBuffer",
	CmdClearRenderTarget: "ClearRenderTarget",
	CmdClearDepth:        "ClearDepth",
	CmdClearUAV:          "ClearUAV",
	CmdDraw:              "Draw",
	CmdDispatch:          "Dispatch",
	CmdDispatchMesh:      "DispatchMesh",
	CmdTimestamp:         "Timestamp",
	CmdResolveTimestamps: "ResolveTimestamps",
}

func (k CommandKind) String() string {
	if int(k) < len(commandNames) {
		return commandNames[k]
	}
	return fmt.Sprintf("CommandKind(%d)", uint8(k))
}

// Command is one recorded command. Only the fields relevant to Kind are set.
type Command struct {
	Kind     CommandKind
	Stage    Stage
	Barriers []Barrier
	// Pipeline is the key of a registered pipeline.
	Pipeline   string
	Viewport   Viewport
	Constants  []byte
	Table      DescriptorTable
	Descriptor Descriptor
	Target     *Texture
	Depth      *Texture
	Vertices   *VertexBuffer
	Color      [4]float32
	DepthValue float32
	// Counts holds vertex and instance counts for draws, group counts for dispatches.
	Counts [3]uint32
	// Query is the timestamp slot of CmdTimestamp, or the number of queries to resolve.
	Query int
	// Timestamps is the query pool of CmdTimestamp and CmdResolveTimestamps.
	Timestamps *TimestampPool
}

// CommandList is an open list of commands. Recording after Close panics.
type CommandList struct {
	commands []Command
	closed   bool
}

// NewCommandList creates an empty open command list.
func NewCommandList() *CommandList {
	return &CommandList{commands: make([]Command, 0, 64)}
}

// Record appends a command.
func (l *CommandList) Record(cmd Command) {
	if l.closed {
		panic("command list closed")
	}
	l.commands = append(l.commands, cmd)
}

// ResourceBarrier validates the barriers against the tracked resource states, applies them and
// records them. Every barrier is validated before any is applied.
//
// Returns:
//   - error: an error wrapping ErrInvalidTransition on a state mismatch
func (l *CommandList) ResourceBarrier(barriers ...Barrier) error {
	if l.closed {
		panic("command list closed")
	}
	for _, b := range barriers {
		if b.Resource == nil || b.Resource.State() != b.Before {
			return b.Apply()
		}
	}
	for _, b := range barriers {
		if err := b.Apply(); err != nil {
			return err
		}
	}
	l.commands = append(l.commands, Command{Kind: CmdBarrier, Barriers: barriers})
	return nil
}

// Len returns the number of recorded commands.
func (l *CommandList) Len() int {
	return len(l.commands)
}

// Close ends recording and hands the commands over to a ClosedCommandList.
func (l *CommandList) Close() *ClosedCommandList {
	if l.closed {
		panic("command list closed")
	}
	l.closed = true
	closed := &ClosedCommandList{commands: l.commands}
	l.commands = nil
	return closed
}

// ClosedCommandList is a finished command list ready for submission.
type ClosedCommandList struct {
	commands []Command
}

// Commands returns the recorded commands in order.
func (c *ClosedCommandList) Commands() []Command {
	return c.commands
}
