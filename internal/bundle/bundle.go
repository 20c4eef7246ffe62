// Package bundle owns the persisted model artifact: the post-one-hot feature
// column list, the per-group learner registry, and the training metadata.
package bundle

import (
	"github.com/partpilot/forecast/internal/domain"
	"github.com/partpilot/forecast/internal/ml"
)

// GroupModels are the four learners trained for one taxonomy partition.
type GroupModels struct {
	RegUsage *ml.Forest
	RegDays  *ml.Forest
	Cls6m    *ml.Forest
	Cls12m   *ml.Forest
}

// GroupEntry pairs a group key with its learners. Entries are kept sorted by
// key so that serialization is deterministic and the final fallback is stable.
type GroupEntry struct {
	Key    domain.GroupKey
	Models GroupModels
}

// Bundle is the self-describing trained artifact.
type Bundle struct {
	FeatureColumns []string
	Groups         []GroupEntry
	Meta           domain.BundleMeta
}

// Lookup finds the exact group entry.
func (b *Bundle) Lookup(key domain.GroupKey) (*GroupModels, bool) {
	for i := range b.Groups {
		if b.Groups[i].Key == key {
			return &b.Groups[i].Models, true
		}
	}
	return nil, false
}

// Resolve selects the models for a key using the three-level fallback chain:
// exact match, then any group with the same (category, size), then the first
// entry in sorted order.
func (b *Bundle) Resolve(key domain.GroupKey) (*GroupModels, bool) {
	if m, ok := b.Lookup(key); ok {
		return m, true
	}
	for i := range b.Groups {
		if b.Groups[i].Key.Category == key.Category && b.Groups[i].Key.Size == key.Size {
			return &b.Groups[i].Models, true
		}
	}
	if len(b.Groups) > 0 {
		return &b.Groups[0].Models, true
	}
	return nil, false
}
