package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marcin-skalski/prwatch/internal/tracker"
)

const trackedKey = "tracked_prs"

// TrackedList stores the tracked pull requests as one JSON document.
type TrackedList struct {
	kv KV
}

func NewTrackedList(kv KV) *TrackedList {
	return &TrackedList{kv: kv}
}

// Load returns the saved records in display order, or nil when nothing was saved.
func (t *TrackedList) Load(ctx context.Context) ([]tracker.Record, error) {
	data, ok, err := t.kv.Get(ctx, trackedKey)
	if err != nil {
		return nil, fmt.Errorf("load tracked PRs: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var records []tracker.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse tracked PRs: %w", err)
	}
	return records, nil
}

// Save replaces the saved list. Transient record fields are not written.
func (t *TrackedList) Save(ctx context.Context, records []tracker.Record) error {
	if records == nil {
		records = []tracker.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode tracked PRs: %w", err)
	}
	if err := t.kv.Put(ctx, trackedKey, data); err != nil {
		return fmt.Errorf("save tracked PRs: %w", err)
	}
	return nil
}
