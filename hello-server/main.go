// Copyright 2026 hello project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// hello-server answers GET / with "hello world!".
// Without flags it listens on 127.0.0.1:8080.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hellobench/hello/pkg/app"
	"github.com/hellobench/hello/pkg/config"
	"github.com/hellobench/hello/pkg/log"
	"golang.org/x/sync/errgroup"
)

var (
	flagConfig = flag.String("config", "", "config file (JSON or YAML)")
	flagAddr   = flag.String("addr", "", "listen address, overrides the config file")
)

var helloResp = []byte("hello world!")

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(helloResp)
}

func main() {
	flag.Parse()
	cfg, err := loadConfig(*flagConfig, *flagAddr)
	if err != nil {
		log.Fatalf("%v", err)
	}
	ctx := context.Background()
	if cfg.HandleSignal {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}
	if err := run(ctx, cfg); err != nil {
		var startupErr *app.StartupError
		if errors.As(err, &startupErr) {
			log.Fatalf("failed to start the app: %v", err)
		}
		log.Fatalf("app failed: %v", err)
	}
	log.Logf(0, "stopped")
}

func loadConfig(path, addr string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if addr != "" {
		cfg.Addr = addr
	}
	return cfg, nil
}

func newApp(cfg *config.Config) (*app.App, error) {
	a, err := app.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := a.GET("/", handleIndex); err != nil {
		return nil, err
	}
	return a, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	ln, err := a.Listen(cfg.Addr)
	if err != nil {
		return err
	}
	var metricsLn net.Listener
	if cfg.MetricsAddr != "" {
		if metricsLn, err = a.Listen(cfg.MetricsAddr); err != nil {
			ln.Close()
			return err
		}
	}
	return serve(ctx, a, ln, metricsLn)
}

// serve runs the app on ln and, if metricsLn is not nil, the metrics endpoint on it.
// If either of them fails, the other one is stopped as well.
func serve(ctx context.Context, a *app.App, ln, metricsLn net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Serve(ctx, ln)
	})
	if metricsLn != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.Metrics())
		srv := &http.Server{Handler: mux}
		log.Logf(0, "serving metrics on http://%v/metrics", metricsLn.Addr())
		g.Go(func() error {
			if err := srv.Serve(metricsLn); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	}
	return g.Wait()
}
