package pages

import (
	"errors"
	"testing"

	"github.com/dpotapov/event-pages/view"
	"github.com/stretchr/testify/require"
)

type mockComponent struct {
	renderResult any
	renderErr    error
	scope        view.Scope
	disposed     bool
}

func (m *mockComponent) Render(s view.Scope) (any, error) {
	m.scope = s
	return m.renderResult, m.renderErr
}

func (m *mockComponent) Dispose() error {
	m.disposed = true
	return nil
}

func mockImporter(comp view.Component, err error) view.ImporterFunc {
	return func(string) (view.Component, error) {
		return comp, err
	}
}

func TestErrorHandlerComponent_Render(t *testing.T) {
	_, parseErr := view.ParseString(`<p>${ a + }</p>`, "broken")
	require.Error(t, parseErr)

	tests := []struct {
		name          string
		comp          view.Component
		importErr     error
		fallback      *mockComponent
		wantResult    any
		wantErr       bool
		wantFallback  bool
		wantErrorsLen int
		wantPath      string
	}{
		{
			name:       "successful render",
			comp:       &mockComponent{renderResult: "success"},
			fallback:   &mockComponent{renderResult: "fallback"},
			wantResult: "success",
		},
		{
			name:          "import error renders fallback",
			importErr:     errors.New("import failed"),
			fallback:      &mockComponent{renderResult: "fallback"},
			wantResult:    "fallback",
			wantErr:       true,
			wantFallback:  true,
			wantErrorsLen: 1,
		},
		{
			name:          "render error renders fallback",
			comp:          &mockComponent{renderErr: errors.New("render failed")},
			fallback:      &mockComponent{renderResult: "fallback"},
			wantResult:    "fallback",
			wantErr:       true,
			wantFallback:  true,
			wantErrorsLen: 1,
		},
		{
			name:          "joined errors are split",
			comp:          &mockComponent{renderErr: errors.Join(errors.New("a"), errors.New("b"))},
			fallback:      &mockComponent{renderResult: "fallback"},
			wantResult:    "fallback",
			wantErr:       true,
			wantFallback:  true,
			wantErrorsLen: 2,
		},
		{
			name:          "component error has path",
			importErr:     parseErr,
			fallback:      &mockComponent{renderResult: "fallback"},
			wantResult:    "fallback",
			wantErr:       true,
			wantFallback:  true,
			wantErrorsLen: 1,
			wantPath:      "/p",
		},
		{
			name:       "no fallback",
			comp:       &mockComponent{renderErr: errors.New("render failed")},
			wantResult: nil,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fallback view.Component
			if tt.fallback != nil {
				fallback = tt.fallback
			}

			eh := newErrorHandlerComponent("page", mockImporter(tt.comp, tt.importErr), fallback)

			rr, err := eh.Render(view.NewBaseScope(nil))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantResult, rr)

			if !tt.wantFallback {
				if tt.fallback != nil {
					require.Nil(t, tt.fallback.scope, "fallback must not be rendered")
				}
				return
			}

			vars := tt.fallback.scope.Vars()
			details, ok := vars["errors"].([]map[string]any)
			require.True(t, ok)
			require.Len(t, details, tt.wantErrorsLen)
			require.NotEmpty(t, vars["message"])

			if tt.wantPath != "" {
				require.Equal(t, tt.wantPath, details[0]["path"])
				require.Equal(t, "broken", details[0]["component"])
				require.NotEmpty(t, details[0]["context"])
			}
		})
	}
}

func TestErrorHandlerComponent_FallbackFails(t *testing.T) {
	fallback := &mockComponent{renderErr: errors.New("fallback failed")}
	comp := &mockComponent{renderErr: errors.New("render failed")}

	eh := newErrorHandlerComponent("page", mockImporter(comp, nil), fallback)

	rr, err := eh.Render(view.NewBaseScope(nil))
	require.Nil(t, rr)
	require.ErrorContains(t, err, "render failed")
	require.ErrorContains(t, err, "fallback failed")
}

func TestErrorHandlerComponent_Dispose(t *testing.T) {
	comp := &mockComponent{}
	eh := newErrorHandlerComponent("page", mockImporter(comp, nil), nil)

	require.NoError(t, eh.Dispose())
	require.True(t, comp.disposed)

	eh = newErrorHandlerComponent("page", mockImporter(nil, view.ErrComponentNotFound), nil)
	require.NoError(t, eh.Dispose())
}
