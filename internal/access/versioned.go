// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package access

import (
	"fmt"
	"sync"

	"github.com/tomtom215/portcullis/internal/enforcer"
	"github.com/tomtom215/portcullis/internal/metrics"
	"github.com/tomtom215/portcullis/internal/policy"
)

// versionedEnforcer holds the evaluator built from the last policy set.
// The set's hash is its version; a rebuild happens only when the version
// changes, and always under mu so two callers never race a rebuild.
type versionedEnforcer struct {
	build   enforcer.Builder
	backend string

	mu      sync.Mutex
	gen     uint64
	version string
	current enforcer.Evaluator
}

func newVersionedEnforcer(backend string, build enforcer.Builder) *versionedEnforcer {
	return &versionedEnforcer{build: build, backend: backend}
}

// get returns an evaluator for set, rebuilding when its hash differs from
// the loaded version. gen is the caller's cache generation; an evaluator
// built for an older generation is never handed to a newer one.
func (v *versionedEnforcer) get(set *policy.Set, gen uint64) (enforcer.Evaluator, error) {
	version := set.Hash()

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != nil && v.version == version && v.gen == gen {
		return v.current, nil
	}

	ev, err := v.build(set)
	if err != nil {
		return nil, fmt.Errorf("build %s enforcer: %w", v.backend, err)
	}
	metrics.EnforcerRebuilds.WithLabelValues(v.backend).Inc()
	metrics.EnforcerPolicies.WithLabelValues("policy").Set(float64(len(set.Policies)))
	metrics.EnforcerPolicies.WithLabelValues("grouping").Set(float64(len(set.Groupings)))

	// A late caller from an old generation gets its evaluator but does not
	// replace the one serving the current generation.
	if gen >= v.gen {
		v.gen, v.version, v.current = gen, version, ev
	}
	return ev, nil
}

// clear drops the loaded evaluator and moves to generation gen.
func (v *versionedEnforcer) clear(gen uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gen, v.version, v.current = gen, "", nil
}

// loadedVersion returns the hash of the loaded set, or "".
func (v *versionedEnforcer) loadedVersion() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}
