package gpu

import "fmt"

// ResourceState is the usage state a resource is in. Moving between states requires an explicit Barrier.
type ResourceState uint8

const (
	StateCommon ResourceState = iota
	StatePresent
	StateRenderTarget
	StateDepthWrite
	StateUnorderedAccess
	StateShaderResource
	StateCopyDest
)

var stateNames = [...]string{
	StateCommon:          "Common",
	StatePresent:         "Present",
	StateRenderTarget:    "RenderTarget",
	StateDepthWrite:      "DepthWrite",
	StateUnorderedAccess: "UnorderedAccess",
	StateShaderResource:  "ShaderResource",
	StateCopyDest:        "CopyDest",
}

func (s ResourceState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("ResourceState(%d)", uint8(s))
}

// Stateful is implemented by every GPU resource whose state is tracked.
type Stateful interface {
	// Name returns the debug name of the resource.
	Name() string
	// State returns the tracked state of the resource.
	State() ResourceState
	transition(before, after ResourceState) error
}

// Barrier describes a state transition of a single resource.
type Barrier struct {
	Resource Stateful
	Before   ResourceState
	After    ResourceState
}

// Transition builds a Barrier moving res from before to after.
//
// Parameters:
//   - res: the resource to transition
//   - before: the state the resource is expected to be in
//   - after: the state the resource moves to
//
// Returns:
//   - Barrier: the barrier description
func Transition(res Stateful, before, after ResourceState) Barrier {
	return Barrier{Resource: res, Before: before, After: after}
}

// Apply validates the barrier against the tracked state and moves the resource to its After state.
// A mismatching Before state returns an error wrapping ErrInvalidTransition and leaves the resource untouched.
//
// Returns:
//   - error: ErrInvalidTransition if the tracked state differs from Before
func (b Barrier) Apply() error {
	if b.Resource == nil {
		return fmt.Errorf("barrier without resource: %w", ErrInvalidTransition)
	}
	return b.Resource.transition(b.Before, b.After)
}

// resource carries the tracked state shared by buffers and textures.
type resource struct {
	name  string
	state ResourceState
}

func (r *resource) Name() string {
	return r.name
}

func (r *resource) State() ResourceState {
	return r.state
}

func (r *resource) transition(before, after ResourceState) error {
	if r.state != before {
		return fmt.Errorf("%s: %s -> %s while in %s: %w", r.name, before, after, r.state, ErrInvalidTransition)
	}
	r.state = after
	return nil
}
