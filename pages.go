package pages

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/dpotapov/event-pages/view"

	"github.com/gorilla/websocket"
	"golang.org/x/net/html"
)

// chtmlExt is the extension of the page files. It is used when matching files in the
// file system.
const chtmlExt = ".chtml"

// defaultSearchPath is the default list of directories to search for components when importing.
var defaultSearchPath = []string{".", ".lib", "/", "/.lib"}

// validIdentifierRegex matches valid names of dynamic segments.
var validIdentifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// wsUpgrader is a Gorilla WebSocket instance, used to respond HTTP requests with WebSocket.
var wsUpgrader = websocket.Upgrader{}

// Handler serves pages and static assets from a file system. URL paths are mapped to files:
//
//   - /foo/bar -> foo/bar.chtml
//   - /foo/ -> foo/index.chtml
//   - /events/42 -> events/_eventId.chtml, with eventId = "42"
//   - /docs/a/b -> docs/__rest.chtml, with rest = "/a/b"
//   - /foo/file.txt -> foo/file.txt
//
// Route parameters are passed to the page as scope variables.
type Handler struct {
	// FileSystem to serve pages and other web assets from.
	FileSystem fs.FS

	// ComponentSearchPath is a list of directories in the FileSystem to search for components.
	// Relative paths are resolved relative to the rendered page's directory.
	//
	// If not set, the following default paths are used:
	// 1. "." (the directory of the rendered page)
	// 2. ".lib" (a directory named ".lib" in the directory of the rendered page)
	// 3. "/" (the root directory of the FileSystem)
	// 4. "/.lib" (a directory named ".lib" in the root directory of the FileSystem)
	ComponentSearchPath []string

	// CustomImporter is called to import components before looking in the FileSystem.
	// If CustomImporter returns view.ErrComponentNotFound, the default import process is used.
	CustomImporter view.Importer

	// OnError is a callback that is called when an error occurs while serving a page.
	OnError func(*http.Request, error)

	// OnErrorComponent is a name of a component that is rendered when an error occurs while
	// rendering a page. The component receives the list of errors in the "errors" variable.
	// If not set, a standard "Internal Server Error" will be sent back to the client.
	OnErrorComponent string

	// Logger configures logging for internal events.
	Logger *slog.Logger

	// init is used to initialize the handler only once.
	init sync.Once

	// logger is a private logger instance that is used to log internal events.
	logger *slog.Logger

	// errComp is an imported error component instance if OnErrorComponent is set.
	errComp view.Component
}

// ServeHTTP implements the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.init.Do(func() {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		if h.Logger != nil {
			h.logger = h.Logger
		}

		if h.OnErrorComponent != "" {
			ec, err := h.importer(".").Import(h.OnErrorComponent)
			if err != nil {
				h.logger.Error("Import error component", "name", h.OnErrorComponent, "error", err)
			}
			h.errComp = ec
		}
	})

	if err := h.handleRequest(w, r); err != nil {
		// the connection is hijacked for websockets
		if !websocket.IsWebSocketUpgrade(r) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}

		h.logger.Error("Serve HTTP request", "url", r.URL.Redacted(), "error", err)

		if h.OnError != nil {
			h.OnError(r, err)
		}
	}
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) error {
	urlPath := cleanPath(r.URL.EscapedPath())

	params := map[string]string{}

	fsPath, err := h.matchFS(urlPath, ".", params)
	if err != nil {
		return err
	}

	if fsPath == "" {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return nil
	}

	if strings.HasSuffix(fsPath, chtmlExt) {
		args := make(map[string]any, len(params))
		for k, v := range params {
			args[k] = v
		}

		return h.servePage(w, r, fsPath, args)
	}

	return h.serveFile(w, r, fsPath)
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, fsPath string, args map[string]any) error {
	imp := h.importer(path.Dir(fsPath))

	compName := path.Base(strings.TrimSuffix(fsPath, chtmlExt))

	comp := newErrorHandlerComponent(compName, imp, h.errComp)
	defer func() {
		if err := comp.Dispose(); err != nil {
			h.logger.Warn("Dispose component", "page", fsPath, "error", err)
		}
	}()

	scope := view.NewBaseScope(args)

	if websocket.IsWebSocketUpgrade(r) {
		return h.serveWebSocket(w, r, comp, scope)
	}

	rr, err := comp.Render(scope)
	if err != nil {
		h.logger.Error("Render component", "page", fsPath, "error", err)
		if rr == nil {
			return fmt.Errorf("render component: %w", err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}

	return writeResult(w, rr)
}

// serveWebSocket renders the page on connect, then re-renders it:
// 1. on each incoming websocket message, merging the JSON object into the page variables
// 2. whenever the scope is touched
// It stops when the websocket connection is closed.
func (h *Handler) serveWebSocket(w http.ResponseWriter, r *http.Request, comp view.Component, scope *view.BaseScope) error {
	ws, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	msgs := make(chan map[string]any)
	done := make(chan error, 1) // completion of the reading loop
	quit := make(chan struct{})
	defer close(quit)

	go func() {
		for {
			var msg map[string]any
			if err := ws.ReadJSON(&msg); err != nil {
				if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					err = nil
				} else {
					err = fmt.Errorf("read websocket message: %w", err)
				}
				done <- err
				return
			}
			select {
			case msgs <- msg:
			case <-quit:
				return
			}
		}
	}()

	render := func() error {
		rr, err := comp.Render(scope)
		if err != nil {
			h.logger.Error("Render component", "url", r.URL.Redacted(), "error", err)
			if rr == nil {
				return fmt.Errorf("render component: %w", err)
			}
		}

		mw, err := ws.NextWriter(websocket.TextMessage)
		if err != nil {
			return fmt.Errorf("get websocket writer: %w", err)
		}
		if err := writeResult(mw, rr); err != nil {
			return err
		}
		if err := mw.Close(); err != nil {
			return fmt.Errorf("close websocket writer: %w", err)
		}
		return nil
	}

	if err := render(); err != nil {
		return err
	}

	for {
		select {
		case msg := <-msgs:
			scope.SetVars(msg)
			if err := render(); err != nil {
				return err
			}
		case <-scope.Touched():
			if err := render(); err != nil {
				return err
			}
		case err := <-done:
			return err
		}
	}
}

func writeResult(w io.Writer, rr any) error {
	switch v := rr.(type) {
	case nil:
		return nil
	case *html.Node:
		if err := html.Render(w, v); err != nil {
			return fmt.Errorf("render HTML: %w", err)
		}
		return nil
	default:
		s, err := view.RenderString(v)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, html.EscapeString(s))
		return err
	}
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, fsPath string) error {
	r.URL.Path = fsPath
	r.URL.RawPath = fsPath
	http.FileServerFS(h.FileSystem).ServeHTTP(w, r)
	return nil
}

func (h *Handler) matchFS(urlPath, dir string, params map[string]string) (string, error) {
	if urlPath == "" {
		return "", nil
	}

	entries, err := fs.ReadDir(h.FileSystem, dir)
	if err != nil {
		return "", fmt.Errorf("read directory %s: %w", dir, err)
	}

	seg, rest := firstSegment(urlPath)

	// hidden (".") and dynamic ("_") names are never addressed directly, neither are page files
	if seg == "" || seg[0] == '.' || seg[0] == '_' || strings.HasSuffix(seg, chtmlExt) {
		return "", nil
	}

	var m string

	if rest != "" {
		sub, err := h.matchDir(seg, dir, entries, params)
		if err != nil {
			return "", err
		}
		if sub != "" {
			m, err = h.matchFS(rest, sub, params)
		}
		if m != "" || err != nil {
			return m, err
		}
	} else {
		m, err = h.matchFile(seg, dir, entries, params)
	}
	if m != "" || err != nil {
		return m, err
	}

	// no match, try catch-all
	catchAllFile, err := findCatchAllFile(entries)
	if err != nil {
		return "", err
	}

	if catchAllFile != "" {
		argName := catchAllFile[2 : len(catchAllFile)-len(chtmlExt)]
		params[argName] = pathUnescape(urlPath)

		return path.Join(dir, catchAllFile), nil
	}

	return "", nil // no match
}

func (h *Handler) matchDir(seg, dir string, entries []fs.DirEntry, params map[string]string) (string, error) {
	dynamicMatch := ""

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()

		if name == seg {
			return path.Join(dir, name), nil
		}

		if name[0] == '_' {
			if !validIdentifierRegex.MatchString(name[1:]) {
				return "", fmt.Errorf("invalid dynamic match in %s", dir)
			}
			if dynamicMatch != "" {
				return "", fmt.Errorf("multiple dynamic matches in %s", dir)
			}
			if params[name[1:]] != "" {
				return "", fmt.Errorf("duplicate dynamic match in %s", dir)
			}
			dynamicMatch = name
		}
	}

	if dynamicMatch != "" {
		params[dynamicMatch[1:]] = seg
		return path.Join(dir, dynamicMatch), nil
	}

	return "", nil // no match
}

func (h *Handler) matchFile(seg, dir string, entries []fs.DirEntry, params map[string]string) (string, error) {
	dynamicMatch := ""

	// a trailing slash only matches the index page
	index := seg == "/"
	if index {
		seg = "index"
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		if path.Ext(name) == chtmlExt {
			if strings.TrimSuffix(name, chtmlExt) == seg {
				return path.Join(dir, name), nil
			}

			if name[0] == '_' && len(name) > len(chtmlExt)+1 && !strings.HasPrefix(name, "__") {
				pn := name[1 : len(name)-len(chtmlExt)]
				if !validIdentifierRegex.MatchString(pn) {
					return "", fmt.Errorf("invalid dynamic match in %s", dir)
				}
				if dynamicMatch != "" {
					return "", fmt.Errorf("multiple dynamic matches in %s", dir)
				}
				if params[pn] != "" {
					return "", fmt.Errorf("duplicate dynamic match in %s", dir)
				}
				dynamicMatch = name
			}
		} else if name == seg && !index {
			return path.Join(dir, name), nil
		}
	}

	if dynamicMatch != "" && !index {
		pn := dynamicMatch[1 : len(dynamicMatch)-len(chtmlExt)]
		params[pn] = seg
		return path.Join(dir, dynamicMatch), nil
	}

	return "", nil // no match
}

// importer builds a view.Importer that resolves components relative to the provided dir.
// Components are resolved by searching the name + ".chtml" extension in ComponentSearchPath.
func (h *Handler) importer(dir string) view.ImporterFunc {
	searchPath := h.ComponentSearchPath
	if len(searchPath) == 0 {
		searchPath = defaultSearchPath
	}

	return func(name string) (view.Component, error) {
		if h.CustomImporter != nil {
			comp, err := h.CustomImporter.Import(name)
			if err == nil || !errors.Is(err, view.ErrComponentNotFound) {
				return comp, err
			}
		}

		for _, sp := range searchPath {
			p := name + chtmlExt

			// if the search path is absolute, ignore the source component's path:
			if path.IsAbs(sp) {
				p = path.Join(sp, p)
			} else {
				p = path.Join(dir, sp, p)
			}
			p = strings.TrimPrefix(p, "/") // fs.FS paths are unrooted

			comp, err := view.ParseFile(h.FileSystem, p)
			if errors.Is(err, view.ErrComponentNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}

			return comp, nil
		}

		return nil, view.ErrComponentNotFound
	}
}

// cleanPath returns the canonical path for p, eliminating . and .. elements.
//
// Copied from net/http/server.go
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	// path.Clean removes trailing slash except for root;
	// put the trailing slash back if necessary.
	if p[len(p)-1] == '/' && np != "/" {
		// Fast path for common case of p being the string we want:
		if len(p) == len(np)+1 && strings.HasPrefix(p, np) {
			np = p
		} else {
			np += "/"
		}
	}
	return np
}

// firstSegment splits path into its first segment, and the rest.
// The path must begin with "/".
// If path consists of only a slash, firstSegment returns ("/", "").
// The segment is returned unescaped, if possible.
//
// Copied from net/http/routing_tree.go.
func firstSegment(path string) (seg, rest string) {
	if path == "/" {
		return "/", ""
	}
	path = path[1:] // drop initial slash
	i := strings.IndexByte(path, '/')
	if i < 0 {
		i = len(path)
	}
	return pathUnescape(path[:i]), path[i:]
}

// Copied from net/http/routing_tree.go.
func pathUnescape(path string) string {
	u, err := url.PathUnescape(path)
	if err != nil {
		// Invalidly escaped path; use the original
		return path
	}
	return u
}

func findCatchAllFile(entries []fs.DirEntry) (string, error) {
	catchAll := ""

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, chtmlExt) || len(name) < 3 || name[:2] != "__" {
			continue
		}
		if catchAll != "" {
			return "", fmt.Errorf("multiple catch-all files found")
		}
		catchAll = name
	}

	return catchAll, nil
}
