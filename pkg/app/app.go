// Copyright 2026 hello project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package app implements a small web application on top of net/http:
// a route table that is frozen once the app starts serving, a middleware chain,
// a catch-all handler, static file directories and the listener lifecycle.
package app

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hellobench/hello/pkg/config"
	"github.com/hellobench/hello/pkg/log"
	"github.com/hellobench/hello/pkg/stats"
)

// ServerName is sent in the Server response header.
const ServerName = "hello-server"

var (
	ErrDuplicateRoute   = errors.New("a handler for this method and path already exists")
	ErrConflictingRoute = errors.New("route conflicts with an existing route")
	ErrBadPath          = errors.New("invalid HTTP path (should start with /)")
	ErrBadMethod        = errors.New("unsupported HTTP method")
	ErrAppRunning       = errors.New("the app is already running")
)

type Route struct {
	Method string
	Path   string
}

type Middleware func(http.Handler) http.Handler

type App struct {
	cfg   *config.Config
	stats *stats.Stats

	mu         sync.Mutex
	mux        *http.ServeMux
	routes     []Route
	seen       map[Route]bool
	middleware []Middleware
	all        http.Handler
	frozen     bool

	buildOnce sync.Once
	handler   http.Handler

	state atomic.Int32
	addr  atomic.Value
}

func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TCPTimeout == 0 {
		log.Warnf("TCP timeout is disabled, slow clients may exhaust the connection limit")
	}
	a := &App{
		cfg:   cfg,
		stats: stats.New(),
		mux:   http.NewServeMux(),
		seen:  make(map[Route]bool),
		all:   http.HandlerFunc(notFound),
	}
	// Everything the routes don't match ends up in the catch-all handler.
	a.mux.HandleFunc("/", a.serveAll)
	return a, nil
}

func (a *App) Config() *config.Config {
	return a.cfg
}

// Handle registers h for the method and the path.
// The path is matched exactly, except for net/http wildcards: "/user/{name}"
// matches one segment and "/files/{rest...}" matches the remainder of the path.
func (a *App) Handle(method, path string, h http.HandlerFunc) error {
	return a.register(method, path, exactPattern(path), h)
}

func (a *App) GET(path string, h http.HandlerFunc) error {
	return a.Handle(http.MethodGet, path, h)
}

func (a *App) POST(path string, h http.HandlerFunc) error {
	return a.Handle(http.MethodPost, path, h)
}

func (a *App) PUT(path string, h http.HandlerFunc) error {
	return a.Handle(http.MethodPut, path, h)
}

func (a *App) DELETE(path string, h http.HandlerFunc) error {
	return a.Handle(http.MethodDelete, path, h)
}

// Use appends middleware to the chain. Middleware run in the order they were added,
// before the route is dispatched. A middleware cancels the request by writing
// the response itself and not calling the next handler.
func (a *App) Use(mw ...Middleware) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frozen {
		return ErrAppRunning
	}
	a.middleware = append(a.middleware, mw...)
	return nil
}

// All replaces the handler for requests that match no route.
// By default such requests get 404 "Not Found".
func (a *App) All(h http.HandlerFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frozen {
		return ErrAppRunning
	}
	a.all = h
	return nil
}

// Static serves the files from dir for GET requests under prefix.
// Directories are not listed.
func (a *App) Static(prefix, dir string) error {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	return a.register(http.MethodGet, prefix, prefix, http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/") {
				a.serveAll(w, r)
				return
			}
			files.ServeHTTP(w, r)
		}))
}

// Routes returns the registered routes in the registration order.
func (a *App) Routes() []Route {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Route(nil), a.routes...)
}

// Metrics serves the request metrics of the app.
func (a *App) Metrics() http.Handler {
	return a.stats.Handler()
}

// Handler returns the complete request handler of the app.
// After the first call the route table can't be changed anymore.
func (a *App) Handler() http.Handler {
	a.buildOnce.Do(func() {
		a.mu.Lock()
		a.frozen = true
		a.mu.Unlock()
		a.handler = a.build()
	})
	return a.handler
}

func (a *App) State() State {
	return State(a.state.Load())
}

// Addr returns the address the app listens on, or nil if it's stopped.
func (a *App) Addr() net.Addr {
	if a.State() != StateListening {
		return nil
	}
	box, _ := a.addr.Load().(addrBox)
	return box.addr
}

// addrBox keeps the type stored in App.addr constant.
type addrBox struct {
	addr net.Addr
}

func (a *App) register(method, path, pattern string, h http.Handler) (err error) {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: %q", ErrBadPath, path)
	}
	if !knownMethods[method] {
		return fmt.Errorf("%w: %q", ErrBadMethod, method)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frozen {
		return ErrAppRunning
	}
	route := Route{Method: method, Path: path}
	if a.seen[route] {
		return fmt.Errorf("%w: %v %v", ErrDuplicateRoute, method, path)
	}
	// ServeMux panics on patterns that conflict with the registered ones.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrConflictingRoute, r)
		}
	}()
	if method == http.MethodGet {
		h = a.getOnly(h)
	}
	a.mux.Handle(method+" "+pattern, h)
	a.seen[route] = true
	a.routes = append(a.routes, route)
	return nil
}

// getOnly sends HEAD requests to the catch-all handler.
// ServeMux matches HEAD with GET patterns; an explicit HEAD route is more
// specific and still takes precedence.
func (a *App) getOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			a.serveAll(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *App) serveAll(w http.ResponseWriter, r *http.Request) {
	a.all.ServeHTTP(w, r)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	io.WriteString(w, "Not Found")
}

// exactPattern turns a trailing slash into an exact match,
// so that "/" only matches the root and not the whole tree.
func exactPattern(path string) string {
	if strings.HasSuffix(path, "/") {
		return path + "{$}"
	}
	return path
}

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}
