/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OSCARNAR2018/asado-tracker/gateway"
	"github.com/OSCARNAR2018/asado-tracker/store"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind          string
	corsOrigins   []string
	databaseURL   string
	deviceTimeout time.Duration
	eventFile     string
	feed          string
	localDB       string
	natsSubject   string
	natsURL       string
	port          int
	prefix        string
	profile       bool
	syncTimeout   time.Duration
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	switch c.feed {
	case store.FeedPostgres, store.FeedLocal:
	case store.FeedNATS:
		if c.natsURL == "" {
			return errors.New("--nats-url is required with --feed nats")
		}
	default:
		return fmt.Errorf("invalid feed %q (must be one of postgres, nats, local)", c.feed)
	}
	if c.databaseURL != "" && !strings.HasPrefix(c.databaseURL, "postgres://") && !strings.HasPrefix(c.databaseURL, "postgresql://") {
		return errors.New("--database-url must be a postgres:// URL")
	}
	if c.syncTimeout <= 0 {
		return fmt.Errorf("invalid sync timeout: %s", c.syncTimeout)
	}
	if c.localDB == "" {
		return errors.New("--local-db must not be empty")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ASADO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "asadotracker",
		Short:         "Leaderboard, dessert vote and house rules for the family asado.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			setupLogging(cfg.verbose)
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: ASADO_BIND)")
	fs.StringSliceVar(&cfg.corsOrigins, "cors-origin", nil, "origin allowed to call the JSON API, repeatable (env: ASADO_CORS_ORIGIN)")
	fs.StringVar(&cfg.databaseURL, "database-url", "", "postgres:// URL of the shared store; live mode is disabled without it (env: ASADO_DATABASE_URL)")
	fs.DurationVar(&cfg.deviceTimeout, "device-timeout", 60*time.Minute, "time before idle devices are released from memory (env: ASADO_DEVICE_TIMEOUT)")
	fs.StringVar(&cfg.eventFile, "event-file", "", "yaml file with ballots and rules, instead of the built-in asado (env: ASADO_EVENT_FILE)")
	fs.StringVar(&cfg.feed, "feed", store.FeedPostgres, "change feed for live updates: postgres, nats or local (env: ASADO_FEED)")
	fs.StringVar(&cfg.localDB, "local-db", "asado-local.db", "sqlite file holding each device's local state (env: ASADO_LOCAL_DB)")
	fs.StringVar(&cfg.natsSubject, "nats-subject", "asado.changes", "subject prefix for change notifications (env: ASADO_NATS_SUBJECT)")
	fs.StringVar(&cfg.natsURL, "nats-url", nats.DefaultURL, "NATS server used by --feed nats (env: ASADO_NATS_URL)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: ASADO_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: ASADO_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: ASADO_PROFILE)")
	fs.DurationVar(&cfg.syncTimeout, "sync-timeout", gateway.DefaultSyncTimeout, "time allowed for the background profile write after login (env: ASADO_SYNC_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: ASADO_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: ASADO_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: ASADO_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: ASADO_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("asadotracker v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
