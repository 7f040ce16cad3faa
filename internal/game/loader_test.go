package game

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const defaultYAML = `
version: "1"
wincap: 100
increment: 0.1
quotas: {loss: 0.5, wincap: 0}
retarget:
  default_floor: 1
  floors: {a: 10}
`

const demoYAML = `
version: "2"
rtp: 0.9
tiers:
  - {name: a, min: 0, max: 1, weight: 600000}
  - {name: b, min: 1, max: 3, weight: 300000}
  - {name: c, min: 3, max: 10, weight: 100000}
retarget:
  floors: {b: 20}
`

const hotYAML = `
rtp: 0.8
bet: 2
retarget:
  locked: [c]
`

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// fixture lays out default, demo and demo/hot under a temp base dir.
func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "games/default.yaml", defaultYAML)
	writeFile(t, dir, "games/demo.yaml", demoYAML)
	writeFile(t, dir, "games/demo/modes/hot.yaml", hotYAML)
	return dir
}

func TestLoadMergedGame(t *testing.T) {
	l := NewLoader(fixture(t))
	cfg, err := l.LoadMerged("demo", "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Version != "2" || *cfg.RTP != 0.9 || *cfg.Wincap != 100 {
		t.Fatalf("merged=%+v", cfg)
	}
	if len(cfg.Tiers) != 3 {
		t.Fatalf("tiers=%v", cfg.Tiers)
	}
	f := cfg.Retarget.Floors
	if f["a"] != 10 || f["b"] != 20 || *cfg.Retarget.DefaultFloor != 1 {
		t.Fatalf("floors should merge by key: %+v default=%v", f, cfg.Retarget.DefaultFloor)
	}
}

func TestLoadMergedMode(t *testing.T) {
	l := NewLoader(fixture(t))
	cfg, err := l.LoadMerged("demo", "hot")
	if err != nil {
		t.Fatal(err)
	}
	if *cfg.RTP != 0.8 || *cfg.Bet != 2 || len(cfg.Retarget.Locked) != 1 {
		t.Fatalf("mode not applied: %+v", cfg)
	}
	if cfg.Retarget.Floors["b"] != 20 {
		t.Fatalf("mode without floors keeps game floors: %+v", cfg.Retarget.Floors)
	}
	base, err := l.LoadMerged("demo", "")
	if err != nil {
		t.Fatal(err)
	}
	if *base.RTP != 0.9 || base.Bet != nil {
		t.Fatalf("mode leaked into game config: %+v", base)
	}
}

func TestLoadMergedMissing(t *testing.T) {
	l := NewLoader(fixture(t))
	if _, err := l.LoadMerged("nope", ""); !errors.Is(err, ErrUnknownGame) {
		t.Fatalf("want ErrUnknownGame, got %v", err)
	}
	if _, err := l.LoadMerged("demo", "cold"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("want ErrUnknownMode, got %v", err)
	}
	for _, name := range []string{"../etc", "a/b", "", "default"} {
		if _, err := l.LoadMerged(name, ""); !errors.Is(err, ErrBadName) {
			t.Fatalf("%q: want ErrBadName, got %v", name, err)
		}
	}
}

func TestLoadMergedBadYAML(t *testing.T) {
	dir := fixture(t)
	writeFile(t, dir, "games/broken.yaml", "tiers: [\n")
	if _, err := NewLoader(dir).LoadMerged("broken", ""); err == nil {
		t.Fatalf("malformed yaml must error")
	}
}

func TestLoaderCacheInvalidate(t *testing.T) {
	dir := fixture(t)
	l := NewLoader(dir)
	if _, err := l.LoadMerged("demo", ""); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "games/demo.yaml", strings.Replace(demoYAML, "rtp: 0.9", "rtp: 0.7", 1))
	cfg, _ := l.LoadMerged("demo", "")
	if *cfg.RTP != 0.9 {
		t.Fatalf("cached config should be served until invalidated, rtp=%v", *cfg.RTP)
	}
	l.Invalidate()
	cfg, err := l.LoadMerged("demo", "")
	if err != nil {
		t.Fatal(err)
	}
	if *cfg.RTP != 0.7 {
		t.Fatalf("reload after invalidate, rtp=%v", *cfg.RTP)
	}
}

func TestGames(t *testing.T) {
	l := NewLoader(fixture(t))
	games, err := l.Games()
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 1 || games[0] != "demo" {
		t.Fatalf("games=%v", games)
	}
}
