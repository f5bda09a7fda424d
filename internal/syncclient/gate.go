package syncclient

import (
	"errors"
	"sync"
)

// Domain is an independently loaded and saved slice of a user's data.
type Domain string

const (
	DomainFlowsheet  Domain = "flowsheet"
	DomainChecklists Domain = "checklists"
	DomainLabs       Domain = "labs"
	DomainSnippets   Domain = "snippets"
)

// Domains lists the domains LoadAll fetches.
var Domains = []Domain{DomainFlowsheet, DomainChecklists, DomainLabs, DomainSnippets}

// State is where a domain is in its load lifecycle.
type State int

const (
	NotLoaded State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// ErrSkipped is returned by a save for a domain that is not Loaded. No
// request is sent, so local defaults can never overwrite server data
// that has not been read yet. Callers treat it as success.
var ErrSkipped = errors.New("save skipped: domain not loaded")

type domainState struct {
	// queue serializes loads and saves of one domain.
	queue sync.Mutex

	state State
	err   error
}

// gate tracks the load state of every domain.
type gate struct {
	mu      sync.Mutex
	domains map[Domain]*domainState
}

func newGate() *gate {
	return &gate{domains: make(map[Domain]*domainState)}
}

func (g *gate) domain(d Domain) *domainState {
	g.mu.Lock()
	defer g.mu.Unlock()
	ds, ok := g.domains[d]
	if !ok {
		ds = &domainState{}
		g.domains[d] = ds
	}
	return ds
}

func (g *gate) state(d Domain) (State, error) {
	ds := g.domain(d)
	g.mu.Lock()
	defer g.mu.Unlock()
	return ds.state, ds.err
}

func (g *gate) set(d Domain, s State, err error) {
	ds := g.domain(d)
	g.mu.Lock()
	defer g.mu.Unlock()
	ds.state = s
	ds.err = err
}

// load runs fn as a load of d: the domain is Loading while fn runs and
// ends Loaded or Failed.
func (g *gate) load(d Domain, fn func() error) error {
	ds := g.domain(d)
	ds.queue.Lock()
	defer ds.queue.Unlock()

	g.set(d, Loading, nil)
	if err := fn(); err != nil {
		g.set(d, Failed, err)
		return err
	}
	g.set(d, Loaded, nil)
	return nil
}

// save runs fn only if d is Loaded, one save at a time.
func (g *gate) save(d Domain, fn func() error) error {
	ds := g.domain(d)
	ds.queue.Lock()
	defer ds.queue.Unlock()

	if s, _ := g.state(d); s != Loaded {
		return ErrSkipped
	}
	return fn()
}
