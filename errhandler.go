package pages

import (
	"errors"
	"strings"

	"github.com/dpotapov/event-pages/view"
)

// errorHandlerComponent renders a page component and switches to a fallback component when
// the page cannot be imported or rendered.
type errorHandlerComponent struct {
	// comp is the component to render in Render. It is nil if the Importer failed.
	comp view.Component

	// importErr is the error returned by the Importer. It is nil if the Importer succeeded.
	importErr error

	// fallback is the component to render when importErr is not nil or comp.Render returns an error.
	fallback view.Component
}

var _ view.Component = (*errorHandlerComponent)(nil)
var _ view.Disposable = (*errorHandlerComponent)(nil)

func newErrorHandlerComponent(name string, imp view.Importer, fallback view.Component) *errorHandlerComponent {
	comp, err := imp.Import(name)

	return &errorHandlerComponent{
		comp:      comp,
		importErr: err,
		fallback:  fallback,
	}
}

// Render returns the page result, or the fallback result together with the original error.
// The fallback scope has the "errors" list and a joined "message".
func (eh *errorHandlerComponent) Render(s view.Scope) (any, error) {
	err := eh.importErr
	if err == nil {
		rr, rerr := eh.comp.Render(s)
		if rerr == nil {
			return rr, nil
		}
		err = rerr
	}

	if eh.fallback == nil {
		return nil, err
	}

	errs := []error{err}
	if multierr, ok := err.(interface{ Unwrap() []error }); ok {
		errs = multierr.Unwrap()
	}

	details := make([]map[string]any, 0, len(errs))
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		d := map[string]any{"message": e.Error()}

		var ce *view.ComponentError
		if errors.As(e, &ce) {
			d["component"] = ce.Component()
			d["path"] = ce.Path()
			d["context"] = ce.HTMLContext()
		}

		details = append(details, d)
		messages = append(messages, e.Error())
	}

	ss := s.Spawn(map[string]any{
		"errors":  details,
		"message": strings.Join(messages, "\n"),
	})

	rr, ferr := eh.fallback.Render(ss)
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}

	return rr, err
}

func (eh *errorHandlerComponent) Dispose() error {
	var errs []error
	if d, ok := eh.comp.(view.Disposable); ok {
		errs = append(errs, d.Dispose())
	}
	return errors.Join(errs...)
}
