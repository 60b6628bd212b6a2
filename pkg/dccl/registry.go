// SPDX-FileCopyrightText: 2026 Contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dccl

import (
	"github.com/pkg/errors"
)

// Registry holds validated message Descriptors keyed by DCCL id. Design
// Notes (spec §9) replace the source's process-wide singleton with an
// explicit value threaded into a Codec; DefaultRegistry exists only for
// callers that want global ergonomics.
type Registry struct {
	byID map[uint16]*Descriptor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[uint16]*Descriptor)}
}

// Register adds a validated Descriptor under its DCCL id. It is the
// Codec's job to validate a Descriptor before calling this; Register
// itself only enforces id uniqueness and rejects the reserved id 0.
func (r *Registry) Register(d *Descriptor) error {
	if d.ID == 0 {
		return errors.Wrap(ErrValidation, "dccl id 0 is reserved")
	}
	if _, exists := r.byID[d.ID]; exists {
		return errors.Wrapf(ErrDuplicateID, "id %d already registered", d.ID)
	}

	r.byID[d.ID] = d
	return nil
}

// Lookup returns the Descriptor registered under id, if any.
func (r *Registry) Lookup(id uint16) (*Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// MustLookup is Lookup that panics on a missing id; intended for callers
// that already validated the id exists (e.g. right after Register).
func (r *Registry) MustLookup(id uint16) *Descriptor {
	d, ok := r.byID[id]
	if !ok {
		panic(errors.Wrapf(ErrUnknownID, "MustLookup: id %d", id))
	}
	return d
}

// All returns every registered Descriptor, in no particular order.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	return out
}

var defaultRegistry *Registry

// DefaultRegistry lazily constructs and returns a package-wide Registry for
// callers that prefer global ergonomics over threading one explicitly.
// Tests should instantiate their own Registry via NewRegistry instead.
func DefaultRegistry() *Registry {
	if defaultRegistry == nil {
		defaultRegistry = NewRegistry()
	}
	return defaultRegistry
}
