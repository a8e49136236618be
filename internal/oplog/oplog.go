// Package oplog reconciles field-level edit logs produced on different devices.
//
// Merge is a pure reducer: it takes two logs, keeps the last write per
// (entity, entity_id, field) and reports edits that share a timestamp but come
// from different devices as conflicts. It never fails.
package oplog

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Op is one immutable field-level edit.
type Op struct {
	ID       uuid.UUID       `json:"id"`
	Entity   string          `json:"entity"`
	EntityID string          `json:"entity_id"`
	Field    string          `json:"field"`
	Value    json.RawMessage `json:"value"`
	// Timestamp is the originating device's logical clock value.
	Timestamp int64     `json:"timestamp"`
	DeviceID  uuid.UUID `json:"device_id"`
}

// NewOp builds an op with a fresh ID, encoding value as JSON.
func NewOp(deviceID uuid.UUID, entity, entityID, field string, value any, timestamp int64) (Op, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Op{}, fmt.Errorf("encode value for %s.%s: %w", entity, field, err)
	}
	return Op{
		ID:        uuid.New(),
		Entity:    entity,
		EntityID:  entityID,
		Field:     field,
		Value:     raw,
		Timestamp: timestamp,
		DeviceID:  deviceID,
	}, nil
}

// Key identifies the logical field an op targets.
type Key struct {
	Entity   string `json:"entity"`
	EntityID string `json:"entity_id"`
	Field    string `json:"field"`
}

// Key returns the op's (entity, entity_id, field) key.
func (o Op) Key() Key {
	return Key{Entity: o.Entity, EntityID: o.EntityID, Field: o.Field}
}

// Envelope is the batch of ops a device ships for reconciliation.
type Envelope struct {
	DeviceID uuid.UUID `json:"device_id"`
	Ops      []Op      `json:"ops"`
}

// Conflict records two edits to the same field with the same timestamp from
// different devices. Right is the op that won by scan order.
type Conflict struct {
	Entity   string `json:"entity"`
	EntityID string `json:"entity_id"`
	Field    string `json:"field"`
	Left     Op     `json:"left"`
	Right    Op     `json:"right"`
}

// MergeResult is the reconciled log plus every conflict detected on the way.
type MergeResult struct {
	MergedOps []Op       `json:"merged_ops"`
	Conflicts []Conflict `json:"conflicts"`
}

// Merge reconciles two logs.
//
// Ops are ordered by (entity, entity_id, field, timestamp, device_id, id) and
// scanned once. The last op scanned for a key wins. When the scanned op has the
// same timestamp as the current winner but a different device, a conflict is
// recorded before the scanned op takes over. Only the current winner is
// compared, so three devices tying on one timestamp report two conflicts, not
// three.
//
// Ordering by device and op id after the timestamp makes the scan order, and so
// the result, independent of which log is passed first. The cost is that two
// ops from one device with the same key and timestamp are told apart by op id
// byte order, not by their position in the log, so Merge(l, nil) may keep a
// different op than the last one l lists for that key.
func Merge(left, right []Op) MergeResult {
	all := make([]Op, 0, len(left)+len(right))
	all = append(all, left...)
	all = append(all, right...)
	slices.SortStableFunc(all, compareScanOrder)

	result := MergeResult{
		MergedOps: make([]Op, 0, len(all)),
		Conflicts: []Conflict{},
	}

	var (
		winner  Op
		haveKey bool
	)
	for _, op := range all {
		if haveKey && op.Key() == winner.Key() {
			if op.Timestamp == winner.Timestamp && op.DeviceID != winner.DeviceID {
				result.Conflicts = append(result.Conflicts, Conflict{
					Entity:   op.Entity,
					EntityID: op.EntityID,
					Field:    op.Field,
					Left:     winner,
					Right:    op,
				})
			}
			winner = op
			continue
		}
		if haveKey {
			result.MergedOps = append(result.MergedOps, winner)
		}
		winner = op
		haveKey = true
	}
	if haveKey {
		result.MergedOps = append(result.MergedOps, winner)
	}

	slices.SortStableFunc(result.MergedOps, func(a, b Op) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return result
}

// MergeEnvelopes merges the ops of two device envelopes.
func MergeEnvelopes(a, b Envelope) MergeResult {
	return Merge(a.Ops, b.Ops)
}

// compareScanOrder orders ops by key, then timestamp, then device and op id.
func compareScanOrder(a, b Op) int {
	if c := cmp.Compare(a.Entity, b.Entity); c != 0 {
		return c
	}
	if c := cmp.Compare(a.EntityID, b.EntityID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Field, b.Field); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	if c := bytes.Compare(a.DeviceID[:], b.DeviceID[:]); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}
