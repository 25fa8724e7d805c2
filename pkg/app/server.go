// Copyright 2026 hello project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package app

import (
	"context"
	"errors"
	"fmt"
	golog "log"
	"net"
	"net/http"

	"github.com/hellobench/hello/pkg/config"
	"github.com/hellobench/hello/pkg/log"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

type State int32

const (
	StateStopped State = iota
	StateListening
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateListening:
		return "listening"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// StartupError is returned when the app can't start listening on the address.
type StartupError struct {
	Addr string
	Err  error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("failed to listen on %v: %v", e.Addr, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// Listen binds the address. Any failure is reported as *StartupError.
func (a *App) Listen(addr string) (net.Listener, error) {
	if err := config.ValidateAddr(addr); err != nil {
		return nil, &StartupError{Addr: addr, Err: err}
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &StartupError{Addr: addr, Err: err}
	}
	return ln, nil
}

// Run listens on addr and serves requests until ctx is cancelled.
func (a *App) Run(ctx context.Context, addr string) error {
	ln, err := a.Listen(addr)
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
// Then it stops accepting and waits up to the shutdown timeout for the active
// requests. A clean shutdown returns nil. Serve takes ownership of ln.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if !a.state.CompareAndSwap(int32(StateStopped), int32(StateListening)) {
		ln.Close()
		return ErrAppRunning
	}
	defer a.state.Store(int32(StateStopped))
	a.addr.Store(addrBox{ln.Addr()})

	timeout := a.cfg.TCPTimeout.Std()
	srv := &http.Server{
		Handler:      a.Handler(),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		ErrorLog:     golog.New(logWriter{v: 1}, "", 0),
	}
	if !a.cfg.DisableLogging {
		log.Logf(0, "starting the application on %v", ln.Addr())
	}
	ln = netutil.LimitListener(ln, a.cfg.MaxConnections)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown(srv)
	})
	return g.Wait()
}

func (a *App) shutdown(srv *http.Server) error {
	timeout := a.cfg.ShutdownTimeout.Std()
	if timeout == 0 {
		return srv.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		srv.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
