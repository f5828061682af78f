/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	adminPassword string
	bind          string
	haToken       string
	haURL         string
	metrics       bool
	passwordFile  string
	playersFile   string
	port          int
	prefix        string
	profile       bool
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if (c.haURL == "") != (c.haToken == "") {
		return errors.New("both --ha-url and --ha-token must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.adminPassword == "" && c.passwordFile == "" {
		return errors.New("one of --admin-password or --password-file must be provided")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

type passwordFile struct {
	AdminPassword string `yaml:"adminPassword"`
}

// secret resolves the admin password. The flag wins over the file.
func (c *Config) secret() (string, error) {
	if c.adminPassword != "" {
		return c.adminPassword, nil
	}

	data, err := os.ReadFile(c.passwordFile)
	if err != nil {
		return "", fmt.Errorf("reading password file: %w", err)
	}

	var pf passwordFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return "", fmt.Errorf("parsing password file %s: %w", c.passwordFile, err)
	}

	if pf.AdminPassword == "" {
		return "", fmt.Errorf("password file %s has no adminPassword", c.passwordFile)
	}

	return pf.AdminPassword, nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("KILLERPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "killerpool",
		Short:         "Scorekeeper for a game of killer pool: three misses and you're out.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.adminPassword, "admin-password", "", "shared secret required to reset a match (env: KILLERPOOL_ADMIN_PASSWORD)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: KILLERPOOL_BIND)")
	fs.StringVar(&cfg.haToken, "ha-token", "", "home assistant long-lived access token (env: KILLERPOOL_HA_TOKEN)")
	fs.StringVar(&cfg.haURL, "ha-url", "", "home assistant base url to forward actions to (env: KILLERPOOL_HA_URL)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "serve prometheus metrics at /metrics (env: KILLERPOOL_METRICS)")
	fs.StringVar(&cfg.passwordFile, "password-file", "", "json or yaml file containing adminPassword (env: KILLERPOOL_PASSWORD_FILE)")
	fs.StringVar(&cfg.playersFile, "players-file", "players.json", "json or yaml file listing known players (env: KILLERPOOL_PLAYERS_FILE)")
	fs.IntVarP(&cfg.port, "port", "p", 3000, "port to listen on (env: KILLERPOOL_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: KILLERPOOL_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: KILLERPOOL_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: KILLERPOOL_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: KILLERPOOL_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: KILLERPOOL_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: KILLERPOOL_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("killerpool v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
