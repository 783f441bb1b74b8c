// Package sensors turns raw marker detections and velocity commands into the per cycle inputs of
// the estimator: it resolves marker ids to landmark slots and keeps the rolling visibility window.
package sensors

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/mhe/mhe"
)

// MarkerRegistry maps external marker ids to landmark slots. Each slot holds at most one id.
type MarkerRegistry struct {
	capacity int
	slots    map[int]int
	owners   map[int]int
}

// NewMarkerRegistry returns an empty registry for numLandmarks slots.
func NewMarkerRegistry(numLandmarks int) *MarkerRegistry {
	return &MarkerRegistry{
		capacity: numLandmarks,
		slots:    map[int]int{},
		owners:   map[int]int{},
	}
}

// Register binds id to slot. Re-registering the same pair is a no-op.
func (r *MarkerRegistry) Register(id, slot int) error {
	if err := mhe.CheckIndex(slot, r.capacity); err != nil {
		return err
	}
	if existing, ok := r.slots[id]; ok {
		if existing == slot {
			return nil
		}
		return errors.Errorf("marker %d is already registered to slot %d", id, existing)
	}
	if owner, ok := r.owners[slot]; ok {
		return errors.Errorf("slot %d is already taken by marker %d", slot, owner)
	}
	r.slots[id] = slot
	r.owners[slot] = id
	return nil
}

// Slot returns the slot of id.
func (r *MarkerRegistry) Slot(id int) (int, bool) {
	slot, ok := r.slots[id]
	return slot, ok
}

// IDs returns the registered marker ids in ascending order.
func (r *MarkerRegistry) IDs() []int {
	ids := lo.Keys(r.slots)
	sort.Ints(ids)
	return ids
}

// Capacity returns the number of landmark slots.
func (r *MarkerRegistry) Capacity() int {
	return r.capacity
}
