// Copyright 2026 hello project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package config holds the server configuration.
// Config files are JSON; YAML is accepted as well and is mapped onto the same json tags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"sigs.k8s.io/yaml"
)

const DefaultAddr = "127.0.0.1:8080"

type Config struct {
	// Listen address in the host:port form.
	Addr string `json:"addr"`
	// Max number of simultaneously open client connections.
	MaxConnections int `json:"max_connections"`
	// Max number of request handlers executing at the same time.
	// Requests above the limit wait for a free slot.
	PoolSize int `json:"pool_size"`
	// Read and write timeout of client connections, 0 disables it.
	TCPTimeout Duration `json:"tcp_timeout"`
	// How long a graceful shutdown may wait for in-flight requests.
	ShutdownTimeout Duration `json:"shutdown_timeout"`
	// Disables the access log and the startup banner.
	DisableLogging bool `json:"disable_logging"`
	// Stop the server on SIGINT/SIGTERM.
	HandleSignal bool `json:"handle_signal"`
	// Send the "Server" response header.
	ServerHeader bool `json:"server_header"`
	// Gzip responses for clients that accept it.
	Compress bool `json:"compress"`
	// Tag every request with a unique X-Request-ID.
	RequestID bool `json:"request_id"`
	// If set, Prometheus metrics are served on this address.
	MetricsAddr string `json:"metrics_addr,omitempty"`
}

var (
	ErrBadTCPTimeout      = errors.New("invalid TCP timeout")
	ErrBadShutdownTimeout = errors.New("invalid shutdown timeout")
	ErrBadPoolSize        = errors.New("invalid pool size")
	ErrBadMaxConnections  = errors.New("invalid max connection count")
	ErrBadAddress         = errors.New("bad address for the interface")
	ErrBadPort            = errors.New("bad port number for the interface")
)

func Default() *Config {
	return &Config{
		Addr:            DefaultAddr,
		MaxConnections:  1000,
		PoolSize:        1000,
		TCPTimeout:      Duration(10 * time.Second),
		ShutdownTimeout: Duration(5 * time.Second),
		HandleSignal:    true,
		ServerHeader:    true,
	}
}

// Load reads the config file on top of the default values.
// Unknown fields are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.TCPTimeout < 0 {
		return ErrBadTCPTimeout
	}
	if c.ShutdownTimeout < 0 {
		return ErrBadShutdownTimeout
	}
	if c.PoolSize <= 0 {
		return ErrBadPoolSize
	}
	if c.MaxConnections <= 0 {
		return ErrBadMaxConnections
	}
	if err := ValidateAddr(c.Addr); err != nil {
		return fmt.Errorf("addr: %w", err)
	}
	if c.MetricsAddr != "" {
		if err := ValidateAddr(c.MetricsAddr); err != nil {
			return fmt.Errorf("metrics_addr: %w", err)
		}
		if c.MetricsAddr == c.Addr {
			return fmt.Errorf("metrics_addr must differ from addr")
		}
	}
	return nil
}

// ValidateAddr checks that addr has the host:port form with a port in 0..65535.
// Port 0 picks a free port.
// An empty host means all interfaces.
func ValidateAddr(addr string) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadAddress, addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("%w: %q", ErrBadPort, portStr)
	}
	return nil
}

// Duration is a time.Duration that is written as "10s" in config files.
// Plain numbers are taken as seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = Duration(val * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("bad duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("bad duration %s", data)
	}
	return nil
}
