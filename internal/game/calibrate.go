package game

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xtding233/payout-engine/internal/payout"
)

var ErrCalibrationRejected = errors.New("calibration rejected in strict mode")

// Entry is a published, calibrated engine and what it was built from.
type Entry struct {
	Engine       *payout.Engine
	Params       EngineParams
	Report       payout.Report
	CalibratedAt time.Time
}

// Registry calibrates each game/mode once and caches the resulting engine.
// Concurrent lookups of one key share a single calibration; other keys are not
// blocked by it. An engine is only stored after it completes, so readers never
// see a half-built table.
type Registry struct {
	res Resolver
	log *zap.Logger
	now func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	gen     uint64 // bumped by Invalidate
	entries map[string]*Entry
}

func NewRegistry(res Resolver, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{res: res, log: log, now: time.Now, entries: make(map[string]*Entry)}
}

// Engine returns the cached engine for game/mode, calibrating it on first use.
func (r *Registry) Engine(game, mode string) (*Entry, error) {
	key := cacheKey(game, mode)
	r.mu.Lock()
	e, ok := r.entries[key]
	gen := r.gen
	r.mu.Unlock()
	if ok {
		return e, nil
	}

	v, err, _ := r.group.Do(fmt.Sprintf("%s@%d", key, gen), func() (any, error) {
		_, p, err := r.res.Resolve(game, mode, Overrides{})
		if err != nil {
			return nil, err
		}
		e, err := r.build(p)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		// an Invalidate during calibration means e was built from stale files
		if r.gen == gen {
			r.entries[key] = e
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// Build calibrates game/mode with overrides without touching the cache.
func (r *Registry) Build(game, mode string, o Overrides) (*Entry, error) {
	if o.Empty() {
		return r.Engine(game, mode)
	}
	_, p, err := r.res.Resolve(game, mode, o)
	if err != nil {
		return nil, err
	}
	return r.build(p)
}

// Preload calibrates each "game" or "game/mode" key, stopping at the first error.
func (r *Registry) Preload(keys []string) error {
	for _, k := range keys {
		game, mode := splitKey(k)
		if _, err := r.Engine(game, mode); err != nil {
			return fmt.Errorf("preload %s: %w", k, err)
		}
	}
	return nil
}

// Keys lists the calibrated game/mode keys.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Invalidate drops every cached engine. Call after hot-reload detects changes.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.entries = make(map[string]*Entry)
}

func (r *Registry) build(p EngineParams) (*Entry, error) {
	log := r.log.With(zap.String("game", p.Game), zap.String("mode", p.Mode), zap.String("version", p.Version))

	var cal *payout.Calibration
	if p.Retarget {
		var err error
		cal, err = payout.Retarget(p.Table, p.Options)
		if err != nil {
			return nil, fmt.Errorf("%s: retarget: %w", cacheKey(p.Game, p.Mode), err)
		}
	} else {
		cal = payout.Evaluate(p.Table, p.Quotas, p.Wincap, p.Target)
	}
	rep := payout.NewReport(cal, p.Quotas, p.Wincap, p.Options.RTPTolerance)

	log.Info("calibrated", rep.Fields()...)
	for _, w := range cal.Warnings {
		log.Warn("calibration warning", zap.Error(w))
	}
	if p.Strict && cal.Err() != nil {
		return nil, fmt.Errorf("%s: %w: %w", cacheKey(p.Game, p.Mode), ErrCalibrationRejected, cal.Err())
	}

	fin, err := p.Finisher()
	if err != nil {
		return nil, err
	}
	if err := cal.Table.Coverage(fin.Quantizer); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", cacheKey(p.Game, p.Mode), ErrInvalidConfig, err)
	}
	eng, err := payout.NewEngine(cal, p.Quotas, fin)
	if err != nil {
		return nil, err
	}
	return &Entry{Engine: eng, Params: p, Report: rep, CalibratedAt: r.now()}, nil
}

func splitKey(k string) (game, mode string) {
	game, mode, _ = strings.Cut(k, "/")
	return game, mode
}
