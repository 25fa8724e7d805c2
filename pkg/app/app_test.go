// Copyright 2026 hello project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package app

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/hellobench/hello/pkg/config"
	"github.com/hellobench/hello/pkg/log"
	"github.com/hellobench/hello/pkg/testutil"
	"github.com/prometheus/client_golang/prometheus/testutil/promlint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(t *testing.T, cfg *config.Config) *App {
	if cfg == nil {
		cfg = config.Default()
		cfg.DisableLogging = true
	}
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func hello(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, "hello world!")
}

func serve(a *App, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouting(t *testing.T) {
	a := testApp(t, nil)
	require.NoError(t, a.GET("/", hello))
	require.NoError(t, a.GET("/echo/{param}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "param: "+r.PathValue("param"))
	}))
	require.NoError(t, a.POST("/post", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	tests := []struct {
		method string
		path   string
		code   int
		body   string
	}{
		{http.MethodGet, "/", http.StatusOK, "hello world!"},
		{http.MethodGet, "/echo/abc", http.StatusOK, "param: abc"},
		{http.MethodPost, "/post", http.StatusCreated, ""},
		{http.MethodGet, "/missing", http.StatusNotFound, "Not Found"},
		{http.MethodGet, "/echo/abc/def", http.StatusNotFound, "Not Found"},
		{http.MethodPost, "/", http.StatusNotFound, "Not Found"},
		{http.MethodDelete, "/", http.StatusNotFound, "Not Found"},
		{http.MethodGet, "/post", http.StatusNotFound, "Not Found"},
		{http.MethodHead, "/", http.StatusNotFound, "Not Found"},
		{http.MethodHead, "/echo/abc", http.StatusNotFound, "Not Found"},
		{http.MethodOptions, "/", http.StatusNotFound, "Not Found"},
		{http.MethodPatch, "/", http.StatusNotFound, "Not Found"},
	}
	for _, test := range tests {
		t.Run(test.method+test.path, func(t *testing.T) {
			rec := serve(a, test.method, test.path)
			assert.Equal(t, test.code, rec.Code)
			assert.Equal(t, test.body, rec.Body.String())
		})
	}
}

func TestIdempotent(t *testing.T) {
	a := testApp(t, nil)
	require.NoError(t, a.GET("/", hello))
	first := serve(a, http.MethodGet, "/")
	second := serve(a, http.MethodGet, "/")
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, first.Header(), second.Header())
}

func TestRegistrationErrors(t *testing.T) {
	a := testApp(t, nil)
	require.NoError(t, a.GET("/", hello))
	assert.ErrorIs(t, a.GET("/", hello), ErrDuplicateRoute)
	assert.ErrorIs(t, a.GET("nope", hello), ErrBadPath)
	assert.ErrorIs(t, a.Handle("FETCH", "/", hello), ErrBadMethod)
	require.NoError(t, a.GET("/a/{x}", hello))
	assert.ErrorIs(t, a.GET("/a/{y}", hello), ErrConflictingRoute)
	// Another method on the same path is a different route.
	assert.NoError(t, a.POST("/", hello))
	assert.Equal(t, []Route{
		{http.MethodGet, "/"},
		{http.MethodGet, "/a/{x}"},
		{http.MethodPost, "/"},
	}, a.Routes())
}

func TestFrozenAfterStart(t *testing.T) {
	a := testApp(t, nil)
	require.NoError(t, a.GET("/", hello))
	a.Handler()
	assert.ErrorIs(t, a.GET("/late", hello), ErrAppRunning)
	assert.ErrorIs(t, a.Use(func(h http.Handler) http.Handler { return h }), ErrAppRunning)
	assert.ErrorIs(t, a.All(hello), ErrAppRunning)
	assert.ErrorIs(t, a.Static("/static", t.TempDir()), ErrAppRunning)
}

func TestExplicitHead(t *testing.T) {
	a := testApp(t, nil)
	require.NoError(t, a.GET("/", hello))
	require.NoError(t, a.Handle(http.MethodHead, "/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Head", "1")
	}))
	rec := serve(a, http.MethodHead, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Head"))
	rec = serve(a, http.MethodGet, "/")
	assert.Equal(t, "hello world!", rec.Body.String())
}

func TestMiddleware(t *testing.T) {
	a := testApp(t, nil)
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	auth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("username") == "" {
				io.WriteString(w, "no username provided")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	require.NoError(t, a.Use(mark("first"), mark("second"), auth))
	require.NoError(t, a.GET("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "username: "+r.URL.Query().Get("username"))
	}))

	rec := serve(a, http.MethodGet, "/")
	assert.Equal(t, "no username provided", rec.Body.String())
	rec = serve(a, http.MethodGet, "/?username=ngn")
	assert.Equal(t, "username: ngn", rec.Body.String())
	assert.Equal(t, []string{"first", "second", "first", "second"}, order)
}

func TestCatchAll(t *testing.T) {
	a := testApp(t, nil)
	require.NoError(t, a.All(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "custom")
	}))
	rec := serve(a, http.MethodGet, "/anything")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "custom", rec.Body.String())
}

func TestStatic(t *testing.T) {
	base := t.TempDir()
	testutil.DirectoryLayout(t, base, map[string]string{
		"public/index.txt":     "index",
		"public/css/style.css": "body{}",
		"public/empty/":        "",
		"secret.txt":           "top secret content",
	})
	a := testApp(t, nil)
	require.NoError(t, a.Static("/static", base+"/public"))

	rec := serve(a, http.MethodGet, "/static/index.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "index", rec.Body.String())

	rec = serve(a, http.MethodGet, "/static/css/style.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())

	for _, path := range []string{"/static/missing.txt", "/static/empty/", "/static/"} {
		rec = serve(a, http.MethodGet, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec = serve(a, http.MethodGet, "/static/../secret.txt")
	assert.NotEqual(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "top secret content")

	rec = serve(a, http.MethodPost, "/static/index.txt")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPanicRecovery(t *testing.T) {
	a := testApp(t, nil)
	require.NoError(t, a.GET("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := serve(a, http.MethodGet, "/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServerHeader(t *testing.T) {
	cfg := config.Default()
	cfg.DisableLogging = true
	a := testApp(t, cfg)
	assert.Equal(t, ServerName, serve(a, http.MethodGet, "/").Header().Get("Server"))

	cfg = config.Default()
	cfg.DisableLogging = true
	cfg.ServerHeader = false
	a = testApp(t, cfg)
	assert.Empty(t, serve(a, http.MethodGet, "/").Header().Get("Server"))
}

func TestRequestID(t *testing.T) {
	cfg := config.Default()
	cfg.DisableLogging = true
	cfg.RequestID = true
	a := testApp(t, cfg)
	var seen string
	require.NoError(t, a.GET("/", func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))

	rec := serve(a, http.MethodGet, "/")
	id := rec.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)
	assert.Equal(t, id, seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-id")
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "client-id", rec.Header().Get(RequestIDHeader))
}

func TestCompress(t *testing.T) {
	cfg := config.Default()
	cfg.DisableLogging = true
	cfg.Compress = true
	a := testApp(t, cfg)
	require.NoError(t, a.GET("/", hello))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "hello world!", string(body))
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	cfg := config.Default()
	cfg.RequestID = true
	a := testApp(t, cfg)
	require.NoError(t, a.GET("/", hello))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	a.Handler().ServeHTTP(httptest.NewRecorder(), req)
	serve(a, http.MethodGet, "/missing")

	out := buf.String()
	assert.Regexp(t, `\S+ 200 GET / req-1\n`, out)
	assert.Regexp(t, `\S+ 404 GET /missing [0-9a-f-]{36}\n`, out)
}

func TestDisableLogging(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	a := testApp(t, nil)
	require.NoError(t, a.GET("/", hello))
	serve(a, http.MethodGet, "/")
	assert.Empty(t, buf.String())
}

func TestMetrics(t *testing.T) {
	a := testApp(t, nil)
	require.NoError(t, a.GET("/", hello))
	serve(a, http.MethodGet, "/")
	serve(a, http.MethodGet, "/")
	serve(a, http.MethodGet, "/missing")

	rec := httptest.NewRecorder()
	a.Metrics().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `hello_requests_total{code="200",method="get"} 2`)
	assert.Contains(t, body, `hello_requests_total{code="404",method="get"} 1`)

	problems, err := promlint.New(bytes.NewReader(rec.Body.Bytes())).Lint()
	require.NoError(t, err)
	for _, p := range problems {
		if p.Metric == "hello_requests_total" || p.Metric == "hello_request_duration_seconds" {
			t.Errorf("%v: %v", p.Metric, p.Text)
		}
	}
}

func TestNewValidates(t *testing.T) {
	cfg := config.Default()
	cfg.PoolSize = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrBadPoolSize)
}
