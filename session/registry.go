package session

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentrelay/intent"
	"github.com/hupe1980/agentrelay/logging"
)

// Templates build fresh targets for new sessions.
type Templates struct {
	// Solo builds the default single-endpoint target.
	Solo func(sessionID string) (*Solo, error)
	// Pipeline builds the producer/reviewer target.
	Pipeline func(sessionID string) (*Pipeline, error)
}

// Options configures a Registry.
type Options struct {
	// Shards is the number of lock shards. Defaults to 32.
	Shards int
	Logger logging.Logger
}

type shard struct {
	mu      sync.Mutex
	targets map[string]Target
}

// Registry maps session ids to live targets. It is an explicit object owned
// by the relay; there is no package level state.
type Registry struct {
	classifier intent.Classifier
	templates  Templates
	shards     []*shard
	count      atomic.Int64
	logger     logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(classifier intent.Classifier, templates Templates, optFns ...func(o *Options)) (*Registry, error) {
	if classifier == nil {
		return nil, errors.New("session registry requires a classifier")
	}
	if templates.Solo == nil || templates.Pipeline == nil {
		return nil, errors.New("session registry requires solo and pipeline templates")
	}

	opts := Options{Shards: 32}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Shards < 1 {
		opts.Shards = 1
	}

	shards := make([]*shard, opts.Shards)
	for i := range shards {
		shards[i] = &shard{targets: make(map[string]Target)}
	}

	return &Registry{
		classifier: classifier,
		templates:  templates,
		shards:     shards,
		logger:     logging.OrNoOp(opts.Logger),
	}, nil
}

func (r *Registry) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

// Resolve returns the target of sessionID, creating it on first use. The
// route of a new session is decided by classifying message; an existing
// session returns its target unconditionally.
func (r *Registry) Resolve(sessionID, message string) (Target, error) {
	return r.resolve(sessionID, func() intent.Route { return r.classifier.Classify(message) })
}

// ResolveRoute is Resolve with a forced route for new sessions. Existing
// sessions keep their target whatever route is requested.
func (r *Registry) ResolveRoute(sessionID string, route intent.Route) (Target, error) {
	return r.resolve(sessionID, func() intent.Route { return route })
}

func (r *Registry) resolve(sessionID string, route func() intent.Route) (Target, error) {
	sh := r.shardFor(sessionID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if t, ok := sh.targets[sessionID]; ok {
		return t, nil
	}

	rt := route()

	t, err := r.build(sessionID, rt)
	if err != nil {
		r.logger.Error("session.resolve.build_failed", "session_id", sessionID, "route", rt, "error", err)
		return nil, err
	}

	sh.targets[sessionID] = t
	r.count.Add(1)
	r.logger.Info("session.resolve.create", "session_id", sessionID, "route", rt)

	return t, nil
}

func (r *Registry) build(sessionID string, route intent.Route) (Target, error) {
	switch route {
	case intent.RoutePipeline:
		p, err := r.templates.Pipeline(sessionID)
		if err != nil {
			return nil, fmt.Errorf("build pipeline for session %s: %w", sessionID, err)
		}
		return p, nil
	default:
		s, err := r.templates.Solo(sessionID)
		if err != nil {
			return nil, fmt.Errorf("build solo target for session %s: %w", sessionID, err)
		}
		return s, nil
	}
}

// Get returns the target of sessionID without creating one.
func (r *Registry) Get(sessionID string) (Target, bool) {
	sh := r.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	t, ok := sh.targets[sessionID]
	return t, ok
}

// Clear drops the target of sessionID. Clearing an absent id is a no-op.
// It reports whether a target was removed.
func (r *Registry) Clear(sessionID string) bool {
	sh := r.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.targets[sessionID]; !ok {
		return false
	}

	delete(sh.targets, sessionID)
	r.count.Add(-1)
	r.logger.Info("session.clear", "session_id", sessionID)

	return true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int { return int(r.count.Load()) }

// IDs returns the ids of all live sessions in lexical order.
func (r *Registry) IDs() []string {
	var ids []string
	for _, sh := range r.shards {
		sh.mu.Lock()
		for id := range sh.targets {
			ids = append(ids, id)
		}
		sh.mu.Unlock()
	}
	sort.Strings(ids)
	return ids
}
