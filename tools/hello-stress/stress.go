// Copyright 2026 hello project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// hello-stress sends a lot of requests to a server as fast as possible.
// Every worker sends its requests one after another and stops at the first failure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hellobench/hello/pkg/log"
	"golang.org/x/sync/errgroup"
)

var (
	flagURL      = flag.String("url", "http://127.0.0.1:8080/", "URL to request")
	flagWorkers  = flag.Int("workers", 10, "number of concurrent workers")
	flagRequests = flag.Int("requests", 1000, "number of requests per worker")
)

var (
	errBadWorkers  = errors.New("invalid worker count")
	errBadRequests = errors.New("invalid request count")
)

type result struct {
	Sent    int64
	Failed  int64
	Elapsed time.Duration
}

func main() {
	flag.Parse()
	client := &http.Client{
		Transport: &http.Transport{MaxIdleConnsPerHost: *flagWorkers},
		Timeout:   30 * time.Second,
	}
	res, err := pressure(context.Background(), client, *flagURL, *flagWorkers, *flagRequests)
	if res != nil {
		log.Logf(0, "sent %v requests, %v workers failed, took %v", res.Sent, res.Failed, res.Elapsed)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

// pressure runs the workers and returns the first failure, if any.
// A failing worker does not stop the others.
func pressure(ctx context.Context, client *http.Client, url string, workers, requests int) (*result, error) {
	if workers <= 0 {
		return nil, errBadWorkers
	}
	if requests <= 0 {
		return nil, errBadRequests
	}
	res := &result{}
	var g errgroup.Group
	start := time.Now()
	for id := 0; id < workers; id++ {
		g.Go(func() error {
			for i := 0; i < requests; i++ {
				atomic.AddInt64(&res.Sent, 1)
				if err := request(ctx, client, url); err != nil {
					atomic.AddInt64(&res.Failed, 1)
					log.Logf(1, "worker %v failed: %v", id, err)
					return fmt.Errorf("worker %v: %w", id, err)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	res.Elapsed = time.Since(start)
	return res, err
}

func request(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-OK response (%d)", resp.StatusCode)
	}
	return nil
}
