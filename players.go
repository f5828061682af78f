/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
	"sync"

	"github.com/Seednode/killerpool/games/killerpool"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// playerNamespace seeds the ids of known players listed without one, so
// the same name maps to the same id across restarts.
var playerNamespace = uuid.MustParse("3f1c2a0e-9b7d-4e55-8a61-6f0d2b9c4e17")

type knownPlayer killerpool.Profile

// UnmarshalYAML accepts either a bare name or a mapping with id, name
// and emoji.
func (k *knownPlayer) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		k.Name = node.Value
		return nil
	}

	var p killerpool.Profile
	if err := node.Decode(&p); err != nil {
		return err
	}

	*k = knownPlayer(p)

	return nil
}

type knownPlayersFile struct {
	KnownPlayers []knownPlayer `yaml:"knownPlayers"`
}

func parseKnownPlayers(data []byte) ([]killerpool.Profile, error) {
	var f knownPlayersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	players := make([]killerpool.Profile, 0, len(f.KnownPlayers))
	seen := make(map[string]bool, len(f.KnownPlayers))

	for _, k := range f.KnownPlayers {
		p := killerpool.Profile(k)
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			continue
		}

		if p.ID == "" {
			p.ID = uuid.NewSHA1(playerNamespace, []byte(p.Name)).String()
		}

		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		if p.Emoji == "" {
			// Keycap bases (digits, '#', '*') are not shown as a player's emoji.
			if g := killerpool.Glyph(p.Name); g != killerpool.DefaultGlyph && g[0] >= utf8.RuneSelf {
				p.Emoji = g
			}
		}

		players = append(players, p)
	}

	return players, nil
}

// Directory is the durable list of known players, read from disk.
type Directory struct {
	cfg  *Config
	path string

	mu      sync.RWMutex
	players []killerpool.Profile
	byID    map[string]killerpool.Profile
}

func newDirectory(cfg *Config, path string) *Directory {
	d := &Directory{
		cfg:  cfg,
		path: path,
	}

	d.load()

	return d
}

// load replaces the player list with the file contents. Any failure
// leaves the directory empty.
func (d *Directory) load() {
	var players []killerpool.Profile

	data, err := os.ReadFile(d.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logf(d.cfg, "PLAYERS: %s does not exist, no known players", d.path)
	case err != nil:
		errorf("reading %s: %v", d.path, err)
	default:
		players, err = parseKnownPlayers(data)
		if err != nil {
			errorf("parsing %s: %v", d.path, err)
			players = nil
		}
	}

	byID := make(map[string]killerpool.Profile, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	d.mu.Lock()
	d.players = players
	d.byID = byID
	d.mu.Unlock()

	logf(d.cfg, "PLAYERS: Loaded %d known players from %s", len(players), d.path)
}

func (d *Directory) Lookup(id string) (killerpool.Profile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.byID[id]

	return p, ok
}

func (d *Directory) List() []killerpool.Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]killerpool.Profile, len(d.players))
	copy(out, d.players)

	return out
}

// watch reloads the directory whenever its file changes, until ctx ends.
// The parent directory is watched so editors that replace the file are
// still picked up.
func (d *Directory) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(d.path)
	if err != nil {
		return err
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				d.load()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			errorf("watching %s: %v", d.path, err)
		}
	}
}
