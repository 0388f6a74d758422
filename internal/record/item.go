// Package record defines the offline item envelope and the clinic domain
// payloads stored inside it.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// CollectionKey identifies one of the locally stored collections.
type CollectionKey string

const (
	// Patients is the collection of patient records.
	Patients CollectionKey = "patients"
	// Appointments is the collection of appointment records.
	Appointments CollectionKey = "appointments"
	// MedicalRecords is the collection of medical record entries.
	MedicalRecords CollectionKey = "medical_records"
)

// AllCollections lists every known collection in a stable order.
func AllCollections() []CollectionKey {
	return []CollectionKey{Patients, Appointments, MedicalRecords}
}

// IsValid reports whether the key names a known collection.
func (k CollectionKey) IsValid() bool {
	switch k {
	case Patients, Appointments, MedicalRecords:
		return true
	}
	return false
}

// SyncState describes where a record sits in the sync lifecycle.
type SyncState string

const (
	// StateLocalOnly means the record has never been pushed to the remote.
	StateLocalOnly SyncState = "LOCAL_ONLY"
	// StatePendingSync means the record has local changes awaiting sync.
	StatePendingSync SyncState = "PENDING_SYNC"
	// StateSynced means the local and remote copies agree.
	StateSynced SyncState = "SYNCED"
	// StateConflict means local and remote versions diverged during a sync run.
	// This state is transient; a run always resolves it to SYNCED.
	StateConflict SyncState = "CONFLICT"
)

// Item is the envelope every locally persisted record lives in.
// Fields are flat and last-write-wins friendly: each mutation bumps
// UpdatedAt, and conflicting copies are resolved by comparing timestamps.
type Item struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Synced is true once the remote copy matches this one.
	Synced bool `json:"_synced"`
	// Deleted marks a soft delete. Deleted items are hidden from active
	// reads but retained until a sync confirms the remote deletion.
	Deleted bool `json:"_deleted"`

	// ArchivedAt is set only while the item sits in the archive.
	// It is stripped on restore.
	ArchivedAt *time.Time `json:"archived_at,omitempty"`

	// Fields carries the domain payload (Patient, Appointment, ...).
	Fields json.RawMessage `json:"fields,omitempty"`
}

// NewItem builds an item around a domain payload with both timestamps set
// to now. The new item starts unsynced.
func NewItem(id string, payload interface{}) (*Item, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload for %s: %w", id, err)
	}
	now := time.Now().UTC()
	return &Item{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Fields:    data,
	}, nil
}

// Validate checks the envelope fields. Payload validation is a caller concern.
func (it *Item) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("id is required")
	}
	if it.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if it.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults fills zero timestamps. Safe to call on items read from
// external sources.
func (it *Item) SetDefaults() {
	now := time.Now().UTC()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = it.CreatedAt
	}
}

// UpdateTimestamp bumps UpdatedAt and clears the synced flag.
// Call after every local mutation of the payload.
func (it *Item) UpdateTimestamp() {
	it.UpdatedAt = time.Now().UTC()
	it.Synced = false
}

// State derives the sync lifecycle state from the bookkeeping fields.
func (it *Item) State() SyncState {
	if it.Synced && !it.Deleted {
		return StateSynced
	}
	if it.UpdatedAt.Equal(it.CreatedAt) && !it.Deleted {
		return StateLocalOnly
	}
	return StatePendingSync
}

// Decode unmarshals the domain payload into v.
func (it *Item) Decode(v interface{}) error {
	if len(it.Fields) == 0 {
		return fmt.Errorf("item %s has no payload", it.ID)
	}
	if err := json.Unmarshal(it.Fields, v); err != nil {
		return fmt.Errorf("failed to decode payload of %s: %w", it.ID, err)
	}
	return nil
}

// SetPayload replaces the domain payload without touching timestamps.
func (it *Item) SetPayload(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", it.ID, err)
	}
	it.Fields = data
	return nil
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	dup := *it
	if it.ArchivedAt != nil {
		t := *it.ArchivedAt
		dup.ArchivedAt = &t
	}
	if it.Fields != nil {
		dup.Fields = append(json.RawMessage(nil), it.Fields...)
	}
	return &dup
}

// Equal reports whether two items are identical, including bookkeeping
// fields and payload bytes.
func (it *Item) Equal(other *Item) bool {
	if other == nil {
		return false
	}
	if it.ID != other.ID ||
		!it.CreatedAt.Equal(other.CreatedAt) ||
		!it.UpdatedAt.Equal(other.UpdatedAt) ||
		it.Synced != other.Synced ||
		it.Deleted != other.Deleted {
		return false
	}
	if (it.ArchivedAt == nil) != (other.ArchivedAt == nil) {
		return false
	}
	if it.ArchivedAt != nil && !it.ArchivedAt.Equal(*other.ArchivedAt) {
		return false
	}
	return bytes.Equal(it.Fields, other.Fields)
}

// EffectiveTime is the timestamp archiving decisions are keyed on:
// UpdatedAt when set, otherwise CreatedAt.
func (it *Item) EffectiveTime() time.Time {
	if !it.UpdatedAt.IsZero() {
		return it.UpdatedAt
	}
	return it.CreatedAt
}

// Filename returns the canonical remote filename for this item: {id}.json
func (it *Item) Filename() string {
	return fmt.Sprintf("%s.json", it.ID)
}
