package core

import (
	"fmt"
	"sort"
)

// Visibility records which stations can sense which other stations'
// transmissions. The relation need not be symmetric and is fixed for a run.
type Visibility struct {
	senses map[string]map[string]struct{}
}

// NewVisibility builds the lookup from observer → sensed stations. When known
// is non-empty every id must belong to it.
func NewVisibility(edges map[string][]string, known ...string) (*Visibility, error) {
	var allowed map[string]struct{}
	if len(known) > 0 {
		allowed = make(map[string]struct{}, len(known))
		for _, id := range known {
			allowed[id] = struct{}{}
		}
	}
	check := func(id string) error {
		if allowed == nil {
			return nil
		}
		if _, ok := allowed[id]; !ok {
			return fmt.Errorf("%w: visibility references unknown station %q", ErrInvalidConfig, id)
		}
		return nil
	}

	v := &Visibility{senses: make(map[string]map[string]struct{}, len(edges))}
	for observer, targets := range edges {
		if err := check(observer); err != nil {
			return nil, err
		}
		set := make(map[string]struct{}, len(targets))
		for _, t := range targets {
			if err := check(t); err != nil {
				return nil, err
			}
			if t == observer {
				continue
			}
			set[t] = struct{}{}
		}
		v.senses[observer] = set
	}
	return v, nil
}

// CanSense reports whether observer hears transmitter. A station never senses
// itself.
func (v *Visibility) CanSense(observer, transmitter string) bool {
	if v == nil || observer == transmitter {
		return false
	}
	_, ok := v.senses[observer][transmitter]
	return ok
}

// Sensed lists the stations observer can hear, sorted.
func (v *Visibility) Sensed(observer string) []string {
	if v == nil {
		return nil
	}
	out := make([]string, 0, len(v.senses[observer]))
	for id := range v.senses[observer] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// BusyFlags derives, for every station, whether it perceives the medium busy
// because it can sense the current transmitter. A nil transmitter leaves the
// medium idle for everyone.
func (v *Visibility) BusyFlags(stations []*Station, transmitter *Station) map[string]bool {
	busy := make(map[string]bool, len(stations))
	for _, s := range stations {
		busy[s.ID()] = transmitter != nil && v.CanSense(s.ID(), transmitter.ID())
	}
	return busy
}

// HiddenPairs returns the unordered station pairs that cannot sense each
// other in either direction.
func (v *Visibility) HiddenPairs(ids []string) [][2]string {
	var pairs [][2]string
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if !v.CanSense(a, b) && !v.CanSense(b, a) {
				pairs = append(pairs, [2]string{a, b})
			}
		}
	}
	return pairs
}
