/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/OSCARNAR2018/asado-tracker/store"
)

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			port:        8080,
			feed:        store.FeedPostgres,
			localDB:     "asado-local.db",
			syncTimeout: 10 * time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"database url", func(c *Config) { c.databaseURL = "postgres://asado@localhost/asado" }, false},
		{"postgresql scheme", func(c *Config) { c.databaseURL = "postgresql://asado@localhost/asado" }, false},
		{"nats feed with url", func(c *Config) { c.feed = store.FeedNATS; c.natsURL = "nats://localhost:4222" }, false},
		{"tls pair", func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, false},
		{"lone tls cert", func(c *Config) { c.tlsCert = "cert.pem" }, true},
		{"port zero", func(c *Config) { c.port = 0 }, true},
		{"port too high", func(c *Config) { c.port = 70000 }, true},
		{"unknown feed", func(c *Config) { c.feed = "kafka" }, true},
		{"nats feed without url", func(c *Config) { c.feed = store.FeedNATS; c.natsURL = "" }, true},
		{"mysql url", func(c *Config) { c.databaseURL = "mysql://localhost/asado" }, true},
		{"zero sync timeout", func(c *Config) { c.syncTimeout = 0 }, true},
		{"empty local db", func(c *Config) { c.localDB = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := Config{}
	if cfg.scheme() != "http" {
		t.Errorf("scheme = %q, want http", cfg.scheme())
	}

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	if cfg.scheme() != "https" {
		t.Errorf("scheme = %q, want https", cfg.scheme())
	}
}

func TestFlagsReadEnvironment(t *testing.T) {
	t.Setenv("ASADO_PORT", "9090")
	t.Setenv("ASADO_FEED", "local")

	cfg := &Config{}
	_ = newCmd(cfg)

	if cfg.port != 9090 {
		t.Errorf("port = %d, want 9090 from ASADO_PORT", cfg.port)
	}
	if cfg.feed != store.FeedLocal {
		t.Errorf("feed = %q, want local from ASADO_FEED", cfg.feed)
	}
}
