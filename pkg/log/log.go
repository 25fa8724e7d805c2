// Copyright 2026 hello project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides leveled logging on top of the standard log package.
// Messages with verbosity above the -vv flag value are dropped.
package log

import (
	"flag"
	"fmt"
	"io"
	golog "log"
	"os"
	"sync"
	"sync/atomic"
)

var (
	flagV = flag.Int("vv", 0, "verbosity")

	mu       sync.Mutex
	logger   = golog.New(os.Stderr, "", golog.LstdFlags|golog.Lmicroseconds)
	disabled atomic.Bool
)

// V reports whether messages of verbosity level v are printed.
func V(v int) bool {
	return v <= *flagV
}

// SetVerbosity overrides the -vv flag value.
func SetVerbosity(v int) {
	*flagV = v
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// Disable silences Logf, Errorf and Warnf. Fatalf is never silenced.
func Disable(v bool) {
	disabled.Store(v)
}

func Logf(v int, msg string, args ...interface{}) {
	if !V(v) || disabled.Load() {
		return
	}
	output(msg, args...)
}

func Warnf(msg string, args ...interface{}) {
	if disabled.Load() {
		return
	}
	output("WARNING: "+msg, args...)
}

func Errorf(msg string, args ...interface{}) {
	if disabled.Load() {
		return
	}
	output("ERROR: "+msg, args...)
}

func Fatalf(msg string, args ...interface{}) {
	output("FATAL: "+msg, args...)
	os.Exit(1)
}

func Fatal(err error) {
	Fatalf("%v", err)
}

func output(msg string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	logger.Output(3, fmt.Sprintf(msg, args...))
}
