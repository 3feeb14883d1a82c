package profile

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

type snapshot struct {
	byID map[string]*Profile
	ids  []string
}

// Registry serves profiles by exercise ID. Lookups read an immutable
// snapshot that Replace swaps atomically, so profiles handed out earlier
// stay unchanged.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry builds a registry from profiles. Later entries with the same
// ID override earlier ones.
func NewRegistry(profiles ...[]*Profile) (*Registry, error) {
	r := &Registry{}
	if err := r.Replace(profiles...); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace validates profiles and swaps them in as the new snapshot.
func (r *Registry) Replace(profiles ...[]*Profile) error {
	s := &snapshot{byID: make(map[string]*Profile)}
	for _, set := range profiles {
		for _, p := range set {
			if err := p.Validate(); err != nil {
				return err
			}
			s.byID[p.ID] = p
		}
	}

	s.ids = make([]string, 0, len(s.byID))
	for id := range s.byID {
		s.ids = append(s.ids, id)
	}
	sort.Strings(s.ids)

	r.snap.Store(s)
	return nil
}

// Lookup returns the profile for id. Unknown IDs get the neutral profile
// and false.
func (r *Registry) Lookup(id string) (*Profile, bool) {
	if p, ok := r.snap.Load().byID[id]; ok {
		return p, true
	}
	return Neutral(id), false
}

// IDs returns every registered exercise ID in sorted order.
func (r *Registry) IDs() []string {
	ids := r.snap.Load().ids
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	return len(r.snap.Load().ids)
}

// CheckCatalog verifies that every exercise in ids has a profile.
func (r *Registry) CheckCatalog(ids []string) error {
	s := r.snap.Load()
	var missing []string
	for _, id := range ids {
		if _, ok := s.byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("catalog exercises without a profile: %s", strings.Join(missing, ", "))
	}
	return nil
}
