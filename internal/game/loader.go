package game

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownGame = errors.New("unknown game")
	ErrUnknownMode = errors.New("unknown mode")
	ErrBadName     = errors.New("game and mode names must be plain identifiers")
)

// Paths helper for default/game/mode files.
type Paths struct {
	BaseDir string // base directory, e.g., /opt/app/config
}

func (p Paths) GamesDir() string {
	return filepath.Join(p.BaseDir, "games")
}
func (p Paths) DefaultPath() string {
	return filepath.Join(p.GamesDir(), "default.yaml")
}
func (p Paths) GamePath(game string) string {
	return filepath.Join(p.GamesDir(), game+".yaml")
}
func (p Paths) ModePath(game, mode string) string {
	return filepath.Join(p.GamesDir(), game, "modes", mode+".yaml")
}

// Loader reads YAML configs and merges default → game → mode.
type Loader struct {
	paths Paths

	mu    sync.RWMutex
	cache map[string]RawConfig // key: "game" or "game/mode"
}

// NewLoader creates a config loader with the given base directory.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		paths: Paths{BaseDir: baseDir},
		cache: make(map[string]RawConfig),
	}
}

func (l *Loader) Paths() Paths { return l.paths }

// LoadMerged loads and merges default → game → mode (mode optional).
// It returns the merged RawConfig (without normalization). The default file
// may be absent; the game file and a named mode file must exist.
func (l *Loader) LoadMerged(game, mode string) (RawConfig, error) {
	if !validName(game) || (mode != "" && !validName(mode)) {
		return RawConfig{}, fmt.Errorf("%w: %q/%q", ErrBadName, game, mode)
	}
	key := cacheKey(game, mode)
	l.mu.RLock()
	if cfg, ok := l.cache[key]; ok {
		l.mu.RUnlock()
		return cfg, nil
	}
	l.mu.RUnlock()

	defCfg, _, err := readYAML(l.paths.DefaultPath())
	if err != nil {
		return RawConfig{}, fmt.Errorf("read default: %w", err)
	}
	gameCfg, ok, err := readYAML(l.paths.GamePath(game))
	if err != nil {
		return RawConfig{}, fmt.Errorf("read game %s: %w", game, err)
	}
	if !ok {
		return RawConfig{}, fmt.Errorf("%w: %s", ErrUnknownGame, game)
	}
	merged := mergeRaw(defCfg, gameCfg)
	gameMerged := merged
	if mode != "" {
		modeCfg, ok, err := readYAML(l.paths.ModePath(game, mode))
		if err != nil {
			return RawConfig{}, fmt.Errorf("read mode %s/%s: %w", game, mode, err)
		}
		if !ok {
			return RawConfig{}, fmt.Errorf("%w: %s/%s", ErrUnknownMode, game, mode)
		}
		merged = mergeRaw(merged, modeCfg)
	}

	l.mu.Lock()
	l.cache[game] = gameMerged
	l.cache[key] = merged
	l.mu.Unlock()

	return merged, nil
}

// Games lists game names with a config file, excluding the default.
func (l *Loader) Games() ([]string, error) {
	entries, err := os.ReadDir(l.paths.GamesDir())
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".yaml")
		if e.IsDir() || !ok || name == "default" {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// Invalidate clears loader's cache. Call after hot-reload detects changes.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]RawConfig)
}

func cacheKey(game, mode string) string {
	if mode == "" {
		return game
	}
	return game + "/" + mode
}

func validName(s string) bool {
	if s == "" || s == "default" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// readYAML loads a YAML file into RawConfig. A missing file returns ok=false
// and no error.
func readYAML(path string) (RawConfig, bool, error) {
	var cfg RawConfig
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RawConfig{}, false, nil
		}
		return RawConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return RawConfig{}, false, err
	}
	return cfg, true, nil
}

// mergeRaw overlays b on a: set scalars in b win, lists in b replace a's
// wholesale, floors merge by tier name.
func mergeRaw(a, b RawConfig) RawConfig {
	out := a

	// top-level scalars
	if b.Version != "" {
		out.Version = b.Version
	}
	if b.Notes != "" {
		out.Notes = b.Notes
	}
	out.RTP = pick(out.RTP, b.RTP)
	out.Wincap = pick(out.Wincap, b.Wincap)
	out.Increment = pick(out.Increment, b.Increment)
	out.Bet = pick(out.Bet, b.Bet)
	out.MinorUnits = pick(out.MinorUnits, b.MinorUnits)
	out.Seed = pick(out.Seed, b.Seed)

	// quotas
	switch {
	case out.Quotas == nil && b.Quotas != nil:
		c := *b.Quotas
		out.Quotas = &c
	case out.Quotas != nil && b.Quotas != nil:
		c := *out.Quotas
		c.Loss = pick(c.Loss, b.Quotas.Loss)
		c.Wincap = pick(c.Wincap, b.Quotas.Wincap)
		c.Base = pick(c.Base, b.Quotas.Base)
		out.Quotas = &c
	}

	// tiers
	if b.Tiers != nil {
		out.Tiers = append([]TierConfig(nil), b.Tiers...)
	}

	// retarget
	switch {
	case out.Retarget == nil && b.Retarget != nil:
		c := *b.Retarget
		c.Floors = maps.Clone(b.Retarget.Floors)
		out.Retarget = &c
	case out.Retarget != nil && b.Retarget != nil:
		c := *out.Retarget
		br := b.Retarget
		c.Enabled = pick(c.Enabled, br.Enabled)
		c.DefaultFloor = pick(c.DefaultFloor, br.DefaultFloor)
		c.Tolerance = pick(c.Tolerance, br.Tolerance)
		c.RTPTolerance = pick(c.RTPTolerance, br.RTPTolerance)
		c.MaxPasses = pick(c.MaxPasses, br.MaxPasses)
		c.Strict = pick(c.Strict, br.Strict)
		if br.Pairs != nil {
			c.Pairs = append([][]string(nil), br.Pairs...)
		}
		if br.Locked != nil {
			c.Locked = append([]string(nil), br.Locked...)
		}
		if br.Floors != nil {
			floors := maps.Clone(c.Floors)
			if floors == nil {
				floors = make(map[string]int64, len(br.Floors))
			}
			maps.Copy(floors, br.Floors)
			c.Floors = floors
		}
		out.Retarget = &c
	}

	return out
}

func pick[T any](a, b *T) *T {
	if b != nil {
		return b
	}
	return a
}
