/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{port: 3000, adminPassword: "pw"}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "password file only", mutate: func(c *Config) { c.adminPassword = ""; c.passwordFile = "password.json" }},
		{name: "no secret", mutate: func(c *Config) { c.adminPassword = "" }, wantErr: true},
		{name: "port zero", mutate: func(c *Config) { c.port = 0 }, wantErr: true},
		{name: "port too high", mutate: func(c *Config) { c.port = 70000 }, wantErr: true},
		{name: "cert without key", mutate: func(c *Config) { c.tlsCert = "cert.pem" }, wantErr: true},
		{name: "cert and key", mutate: func(c *Config) { c.tlsCert = "cert.pem"; c.tlsKey = "key.pem" }},
		{name: "ha url without token", mutate: func(c *Config) { c.haURL = "http://ha.local:8123" }, wantErr: true},
		{name: "ha url and token", mutate: func(c *Config) { c.haURL = "http://ha.local:8123"; c.haToken = "t" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)

			err := c.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigScheme(t *testing.T) {
	assert.Equal(t, "http", (&Config{}).scheme())
	assert.Equal(t, "https", (&Config{tlsCert: "c", tlsKey: "k"}).scheme())
}

func TestConfigSecret(t *testing.T) {
	c := &Config{adminPassword: "flag", passwordFile: writeFile(t, "password.json", `{"adminPassword": "file"}`)}
	s, err := c.secret()
	require.NoError(t, err)
	assert.Equal(t, "flag", s)

	c.adminPassword = ""
	s, err = c.secret()
	require.NoError(t, err)
	assert.Equal(t, "file", s)

	c.passwordFile = writeFile(t, "password.yaml", "adminPassword: yaml-secret\n")
	s, err = c.secret()
	require.NoError(t, err)
	assert.Equal(t, "yaml-secret", s)

	c.passwordFile = writeFile(t, "empty.json", `{"password": "wrong key"}`)
	_, err = c.secret()
	assert.Error(t, err)

	c.passwordFile = filepath.Join(t.TempDir(), "missing.json")
	_, err = c.secret()
	assert.Error(t, err)
}

func TestFlagsFromEnv(t *testing.T) {
	t.Setenv("KILLERPOOL_PORT", "4242")
	t.Setenv("KILLERPOOL_ADMIN_PASSWORD", "from-env")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, 4242, cfg.port)
	assert.Equal(t, "from-env", cfg.adminPassword)
	assert.Equal(t, "players.json", cfg.playersFile)
}
