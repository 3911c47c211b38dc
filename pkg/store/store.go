// Package store abstracts the persistent identity store the scorer reads
// snapshots from and writes scores back to.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrUnknownIdentity = errors.New("edge references unknown identity")
	ErrUnknownGroup    = errors.New("membership references unknown group")
	ErrIdentityMissing = errors.New("identity not found")
	ErrGroupMissing    = errors.New("group not found")
	ErrStoreClosed     = errors.New("store is closed")
)

// IdentityRecord is one identity as persisted: key, last committed score
// and group memberships.
type IdentityRecord struct {
	Key    string
	Score  float64
	Groups []string
}

// GroupRecord is one membership group as persisted.
type GroupRecord struct {
	Key  string
	Seed bool
}

// EdgeRecord is one mutual verification between two identities.
type EdgeRecord struct {
	From string
	To   string
}

// Snapshot is a full read of the store: every identity, group and
// verification edge. A pipeline run consumes exactly one snapshot.
type Snapshot struct {
	Identities []IdentityRecord
	Groups     []GroupRecord
	Edges      []EdgeRecord
}

// DataIntegrityError reports a snapshot whose parts reference each other
// inconsistently. A run must abort on it; partial graphs score garbage.
type DataIntegrityError struct {
	Entity string // "edge" or "membership"
	Ref    string // the dangling reference
	Cause  error
}

// Error implements the error interface.
func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s references %q: %v", e.Entity, e.Ref, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *DataIntegrityError) Unwrap() error {
	return e.Cause
}

// Validate checks referential integrity: every edge endpoint must be a
// known identity and every group membership a known group.
func (s *Snapshot) Validate() error {
	identities := make(map[string]struct{}, len(s.Identities))
	for _, id := range s.Identities {
		identities[id.Key] = struct{}{}
	}
	groups := make(map[string]struct{}, len(s.Groups))
	for _, g := range s.Groups {
		groups[g.Key] = struct{}{}
	}

	for _, id := range s.Identities {
		for _, g := range id.Groups {
			if _, ok := groups[g]; !ok {
				return &DataIntegrityError{Entity: "membership", Ref: g, Cause: ErrUnknownGroup}
			}
		}
	}
	for _, e := range s.Edges {
		if _, ok := identities[e.From]; !ok {
			return &DataIntegrityError{Entity: "edge", Ref: e.From, Cause: ErrUnknownIdentity}
		}
		if _, ok := identities[e.To]; !ok {
			return &DataIntegrityError{Entity: "edge", Ref: e.To, Cause: ErrUnknownIdentity}
		}
	}
	return nil
}

// Store is the persistence collaborator. Implementations must treat
// LoadSnapshot as all-or-nothing; the score updates are per-entity and the
// pipeline reports individual failures.
type Store interface {
	// LoadSnapshot reads a full graph snapshot.
	LoadSnapshot(ctx context.Context) (*Snapshot, error)

	// UpdateNodeScore commits an identity's score.
	UpdateNodeScore(ctx context.Context, key string, score float64) error

	// UpdateGroupScore commits a group's score, raw rank and degree.
	UpdateGroupScore(ctx context.Context, key string, score, rawRank, degree float64) error

	// Close releases the store handle.
	Close() error
}
