package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and local runs.
type MemoryStore struct {
	mu         sync.Mutex
	identities map[string]*IdentityRecord
	groups     map[string]*GroupRecord
	edges      []EdgeRecord

	groupScores map[string][3]float64 // score, raw rank, degree
	closed      bool

	// FailUpdates lists entity keys whose score updates should fail.
	// Used to exercise partial-persistence reporting.
	FailUpdates map[string]error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities:  make(map[string]*IdentityRecord),
		groups:      make(map[string]*GroupRecord),
		groupScores: make(map[string][3]float64),
	}
}

// PutIdentity adds or replaces an identity record.
func (s *MemoryStore) PutIdentity(key string, score float64, groups ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[key] = &IdentityRecord{Key: key, Score: score, Groups: groups}
}

// PutGroup adds or replaces a group record.
func (s *MemoryStore) PutGroup(key string, seed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[key] = &GroupRecord{Key: key, Seed: seed}
}

// PutEdge adds a verification edge.
func (s *MemoryStore) PutEdge(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = append(s.edges, EdgeRecord{From: from, To: to})
}

// LoadSnapshot returns a validated copy of the stored graph.
func (s *MemoryStore) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	snap := &Snapshot{}
	for _, key := range sortedIdentityKeys(s.identities) {
		rec := s.identities[key]
		groups := make([]string, len(rec.Groups))
		copy(groups, rec.Groups)
		snap.Identities = append(snap.Identities, IdentityRecord{Key: rec.Key, Score: rec.Score, Groups: groups})
	}
	for _, key := range sortedGroupKeys(s.groups) {
		snap.Groups = append(snap.Groups, *s.groups[key])
	}
	snap.Edges = append(snap.Edges, s.edges...)

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// UpdateNodeScore commits an identity's score.
func (s *MemoryStore) UpdateNodeScore(ctx context.Context, key string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err, ok := s.FailUpdates[key]; ok {
		return err
	}
	rec, ok := s.identities[key]
	if !ok {
		return ErrIdentityMissing
	}
	rec.Score = score
	return nil
}

// UpdateGroupScore commits a group's score, raw rank and degree.
func (s *MemoryStore) UpdateGroupScore(ctx context.Context, key string, score, rawRank, degree float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err, ok := s.FailUpdates[key]; ok {
		return err
	}
	if _, ok := s.groups[key]; !ok {
		return ErrGroupMissing
	}
	s.groupScores[key] = [3]float64{score, rawRank, degree}
	return nil
}

// IdentityScore returns an identity's committed score.
func (s *MemoryStore) IdentityScore(key string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.identities[key]
	if !ok {
		return 0, false
	}
	return rec.Score, true
}

// GroupScore returns a group's committed score, raw rank and degree.
func (s *MemoryStore) GroupScore(key string) (score, rawRank, degree float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.groupScores[key]
	return v[0], v[1], v[2], ok
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func sortedIdentityKeys(m map[string]*IdentityRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedGroupKeys(m map[string]*GroupRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
