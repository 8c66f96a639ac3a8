package tournament

import (
	"context"
	"fmt"
	"sync"

	"github.com/boutlab/bout/pkg/engineclient"
	"github.com/boutlab/bout/pkg/stats"
	"github.com/puzpuzpuz/xsync/v3"
)

// handlePair is two live engine handles reused across every match of one engine pair.
type handlePair struct {
	a, b *engineclient.Handle
}

type pairSlot struct {
	mu   sync.Mutex
	idle []*handlePair
}

// enginePool is the per-pair EngineHandle pool (§4.7 step 1): acquiring a pair for a
// PairKey constructs (spawns) a new handlePair on first miss and reuses an idle one
// thereafter, matching the tournament-wide rule that engines are not respawned per game.
type enginePool struct {
	slots *xsync.MapOf[stats.PairKey, *pairSlot]
	cfgs  map[string]EngineConfig
}

func newEnginePool(cfgs map[string]EngineConfig) *enginePool {
	return &enginePool{
		slots: xsync.NewMapOf[stats.PairKey, *pairSlot](),
		cfgs:  cfgs,
	}
}

// Acquire returns an idle handlePair for (engineA, engineB) or spawns and starts a fresh
// one, pinning each half to its own CPU lease.
func (p *enginePool) Acquire(ctx context.Context, engineA, engineB string, cpuA, cpuB []int) (*handlePair, error) {
	key := stats.NewPairKey(engineA, engineB)
	slot, _ := p.slots.LoadOrCompute(key, func() *pairSlot { return &pairSlot{} })

	slot.mu.Lock()
	if n := len(slot.idle); n > 0 {
		hp := slot.idle[n-1]
		slot.idle = slot.idle[:n-1]
		slot.mu.Unlock()
		return hp, nil
	}
	slot.mu.Unlock()

	a, err := p.spawn(ctx, engineA, cpuA)
	if err != nil {
		return nil, fmt.Errorf("spawn %v: %w", engineA, err)
	}
	b, err := p.spawn(ctx, engineB, cpuB)
	if err != nil {
		a.Quit()
		return nil, fmt.Errorf("spawn %v: %w", engineB, err)
	}
	return &handlePair{a: a, b: b}, nil
}

func (p *enginePool) spawn(ctx context.Context, name string, cpuSet []int) (*engineclient.Handle, error) {
	cfg, ok := p.cfgs[name]
	if !ok {
		return nil, fmt.Errorf("unknown engine %q", name)
	}

	ccfg := engineclient.Config{
		Name:    cfg.Name,
		Command: cfg.Command,
		Args:    cfg.Args,
		Dir:     cfg.Dir,
		Options: cfg.Options,
	}
	if v, ok := cfg.HandshakeTimeout.V(); ok {
		ccfg.HandshakeTimeout = v
	}
	if v, ok := cfg.ProbeTimeout.V(); ok {
		ccfg.ProbeTimeout = v
	}

	h := engineclient.New(ccfg)
	if err := h.Start(ctx, cpuSet); err != nil {
		return nil, err
	}
	return h, nil
}

// Release returns hp to the idle pool for reuse by the next match between engineA and
// engineB.
func (p *enginePool) Release(engineA, engineB string, hp *handlePair) {
	key := stats.NewPairKey(engineA, engineB)
	slot, _ := p.slots.LoadOrCompute(key, func() *pairSlot { return &pairSlot{} })
	slot.mu.Lock()
	slot.idle = append(slot.idle, hp)
	slot.mu.Unlock()
}

// Discard kills both handles in hp instead of returning them to the pool: used when a
// match reported needs_restart, so the next Acquire for this pair spawns fresh ones.
func (p *enginePool) Discard(hp *handlePair) {
	hp.a.Quit()
	hp.b.Quit()
}

// CloseAll kills every pooled handle. Called once on tournament shutdown.
func (p *enginePool) CloseAll() {
	p.slots.Range(func(_ stats.PairKey, slot *pairSlot) bool {
		slot.mu.Lock()
		for _, hp := range slot.idle {
			hp.a.Quit()
			hp.b.Quit()
		}
		slot.idle = nil
		slot.mu.Unlock()
		return true
	})
}
