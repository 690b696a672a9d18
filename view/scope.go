package view

// Scope defines an interface for passing arguments to a Component. Scopes are organized in a
// hierarchy: Spawn creates a child scope, and a Touch on any scope of the hierarchy notifies
// the root.
//
// A custom implementation may embed *BaseScope to carry extra data, such as the HTTP request.
type Scope interface {
	// Spawn creates a new child scope initialized with vars.
	Spawn(vars map[string]any) Scope

	// Vars provides access to variables stored in the scope.
	Vars() map[string]any

	// Touch marks the component as changed. The owner of the root scope should re-render
	// the page when this method is called.
	Touch()
}

// BaseScope is a base implementation of the Scope interface.
type BaseScope struct {
	vars    map[string]any
	touched chan struct{}
}

var _ Scope = (*BaseScope)(nil)

func NewBaseScope(vars map[string]any) *BaseScope {
	return &BaseScope{
		vars:    vars,
		touched: make(chan struct{}, 1),
	}
}

func (s *BaseScope) Spawn(vars map[string]any) Scope {
	return &BaseScope{
		vars:    vars,
		touched: s.touched, // all children share the same channel to notify root scope
	}
}

func (s *BaseScope) Vars() map[string]any {
	return s.vars
}

// SetVars merges vars into the scope variables.
func (s *BaseScope) SetVars(vars map[string]any) {
	if s.vars == nil {
		s.vars = make(map[string]any, len(vars))
	}
	for k, v := range vars {
		s.vars[k] = v
	}
}

func (s *BaseScope) Touch() {
	select {
	case s.touched <- struct{}{}:
	default:
	}
}

// Touched returns a channel that receives a value after Touch has been called on the scope
// or any of its children. Pending touches are coalesced.
func (s *BaseScope) Touched() <-chan struct{} {
	return s.touched
}
