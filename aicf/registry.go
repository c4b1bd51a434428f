package aicf

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// ProviderStatus is one state in the provider lifecycle of spec.md §4.8:
// Registered → Active ⇄ Unavailable → Slashed | Retired.
type ProviderStatus string

const (
	ProviderRegistered  ProviderStatus = "registered"
	ProviderActive      ProviderStatus = "active"
	ProviderUnavailable ProviderStatus = "unavailable"
	ProviderSlashed     ProviderStatus = "slashed"
	ProviderRetired     ProviderStatus = "retired"
)

// ErrUnknownProvider is returned by registry lookups for an unregistered
// provider id.
var ErrUnknownProvider = errors.New("aicf: unknown provider")

// ErrProviderTerminal is returned when an operation targets a provider
// already in a terminal state (Slashed or Retired).
var ErrProviderTerminal = errors.New("aicf: provider is in a terminal state")

// Provider is the registry's view of one compute provider.
type Provider struct {
	ID              string
	Status          ProviderStatus
	StakeBalance    int64
	RecentEarnings  int64
	LastHeartbeatTS int64
}

// Registry tracks provider lifecycle state and heartbeat admission. It
// uses a single RWMutex: heartbeats and status transitions take the
// write lock briefly; read-mostly queries (Get, List) take the read
// lock, matching spec.md §5's "multi-reader single-writer" guidance.
type Registry struct {
	validator *HeartbeatValidator

	mu        sync.RWMutex
	providers map[string]*Provider
}

// NewRegistry constructs an empty registry with the given heartbeat
// validation config.
func NewRegistry(hbCfg HeartbeatValidatorConfig) *Registry {
	return &Registry{
		validator: NewHeartbeatValidator(hbCfg),
		providers: make(map[string]*Provider),
	}
}

// Register enrolls a new provider in the Registered state, or is a
// no-op if it already exists.
func (r *Registry) Register(id string, initialStake int64) *Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[id]; ok {
		return p
	}
	p := &Provider{ID: id, Status: ProviderRegistered, StakeBalance: initialStake}
	r.providers[id] = p
	return p
}

// Get returns the current provider record.
func (r *Registry) Get(id string) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrUnknownProvider
	}
	cp := *p
	return &cp, nil
}

// List returns a snapshot of all providers.
func (r *Registry) List() []*Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Provider, 0, len(r.providers))
	for _, p := range r.providers {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

// Heartbeat validates and applies a provider heartbeat, transitioning
// Registered/Unavailable → Active on a fresh valid signal.
func (r *Registry) Heartbeat(hb Heartbeat, now int64) (HeartbeatRejectReason, error) {
	reason := r.validator.Validate(hb, now)
	if reason != HBAccepted {
		return reason, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[hb.ProviderID]
	if !ok {
		return HBAccepted, ErrUnknownProvider
	}
	if p.Status == ProviderSlashed || p.Status == ProviderRetired {
		return HBAccepted, ErrProviderTerminal
	}
	p.LastHeartbeatTS = hb.Timestamp
	if p.Status != ProviderActive {
		log.Info("aicf: provider became active", "provider", p.ID, "from", p.Status)
	}
	p.Status = ProviderActive
	return HBAccepted, nil
}

// SweepLiveness marks any Active provider whose last heartbeat is older
// than livenessThresholdSec as Unavailable. Intended to run periodically
// against wall-clock now.
func (r *Registry) SweepLiveness(now, livenessThresholdSec int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var transitioned []string
	for _, p := range r.providers {
		if p.Status == ProviderActive && now-p.LastHeartbeatTS > livenessThresholdSec {
			p.Status = ProviderUnavailable
			transitioned = append(transitioned, p.ID)
			log.Info("aicf: provider marked unavailable", "provider", p.ID, "silent_for", now-p.LastHeartbeatTS)
		}
	}
	return transitioned
}

// Slash executes a slash plan against the provider's stake/earnings and
// moves it to the Slashed state; it remains eligible for its clawback
// schedule (spec.md §4.8: "remains eligible for clawback schedule").
func (r *Registry) Slash(id string, plan SlashPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return ErrUnknownProvider
	}
	p.StakeBalance -= plan.ImmediateSlash
	if p.StakeBalance < 0 {
		p.StakeBalance = 0
	}
	p.Status = ProviderSlashed
	log.Warn("aicf: provider slashed", "provider", id, "reason", plan.ReasonCode, "immediate", plan.ImmediateSlash, "clawback", plan.ClawbackTotal)
	return nil
}

// Retire moves a non-terminal provider to Retired.
func (r *Registry) Retire(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return ErrUnknownProvider
	}
	if p.Status == ProviderSlashed {
		return ErrProviderTerminal
	}
	p.Status = ProviderRetired
	return nil
}
