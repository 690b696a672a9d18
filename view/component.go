package view

import "errors"

// ErrComponentNotFound is returned by an Importer when it does not know the requested component.
var ErrComponentNotFound = errors.New("component not found")

type Component interface {
	// Render transforms the input data from the scope into another data object, typically
	// an HTML fragment (*html.Node).
	Render(s Scope) (any, error)
}

// Disposable is an optional interface for components that hold resources between renders.
type Disposable interface {
	Dispose() error
}

// Importer acts as a factory for components.
type Importer interface {
	Import(name string) (Component, error)
}

// ImporterFunc adapts an ordinary function to the Importer interface.
type ImporterFunc func(name string) (Component, error)

func (f ImporterFunc) Import(name string) (Component, error) {
	return f(name)
}

// ComponentFunc adapts an ordinary function to the Component interface.
type ComponentFunc func(s Scope) (any, error)

func (f ComponentFunc) Render(s Scope) (any, error) {
	return f(s)
}
