// Copyright 2026 hello project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package app

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/hellobench/hello/pkg/log"
	"golang.org/x/sync/semaphore"
)

const RequestIDHeader = "X-Request-ID"

// build assembles the handler chain, from the outermost wrapper to the routes:
// metrics, request ID, access log, panic recovery, compression, server header,
// handler pool limit, user middleware.
func (a *App) build() http.Handler {
	var h http.Handler = a.mux
	for i := len(a.middleware) - 1; i >= 0; i-- {
		h = a.middleware[i](h)
	}
	h = limitHandlers(semaphore.NewWeighted(int64(a.cfg.PoolSize)), h)
	if a.cfg.ServerHeader {
		h = serverHeader(h)
	}
	if a.cfg.Compress {
		h = handlers.CompressHandler(h)
	}
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}))(h)
	if !a.cfg.DisableLogging {
		h = handlers.CustomLoggingHandler(logWriter{}, h, accessLogFormatter)
	}
	if a.cfg.RequestID {
		h = requestID(h)
	}
	return a.stats.Instrument(h)
}

// limitHandlers bounds the number of handlers running at the same time.
// Requests over the limit wait until a slot frees up or the client goes away.
func limitHandlers(sem *semaphore.Weighted, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := sem.Acquire(r.Context(), 1); err != nil {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		defer sem.Release(1)
		next.ServeHTTP(w, r)
	})
}

func serverHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", ServerName)
		next.ServeHTTP(w, r)
	})
}

// requestID keeps the client supplied X-Request-ID or generates a new one.
// The ID is echoed in the response and visible to the inner handlers.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r = r.Clone(r.Context())
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// accessLogFormatter prints "<latency> <status> <method> <path>[ <request id>]".
// TimeStamp is taken by the logging handler before the request is served.
func accessLogFormatter(w io.Writer, params handlers.LogFormatterParams) {
	line := fmt.Sprintf("%v %d %s %s",
		time.Since(params.TimeStamp).Round(time.Microsecond),
		params.StatusCode,
		params.Request.Method,
		log.Truncate(params.URL.Path, 64, 16),
	)
	if id := params.Request.Header.Get(RequestIDHeader); id != "" {
		line += " " + id
	}
	fmt.Fprintln(w, line)
}

// logWriter forwards writes to the leveled logger, one message per write.
type logWriter struct {
	v int
}

func (lw logWriter) Write(p []byte) (int, error) {
	log.Logf(lw.v, "%s", bytes.TrimRight(p, "\n"))
	return len(p), nil
}

type recoveryLogger struct{}

func (recoveryLogger) Println(args ...interface{}) {
	log.Errorf("handler panicked: %s", bytes.TrimRight([]byte(fmt.Sprintln(args...)), "\n"))
}
