package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

var ErrInvalidRef = errors.New("state: invalid ref")

// Ref identifies one persisted document.
type Ref struct {
	Slot  string
	Owner string
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads, saves and deletes one document per Ref.
type Store interface {
	Load(ctx context.Context, ref Ref) (data []byte, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, data []byte, meta Meta) (Meta, error)
	Delete(ctx context.Context, ref Ref) error
}

func (r Ref) Identifier() (string, error) {
	slot := strings.TrimSpace(r.Slot)
	if slot == "" {
		return "", fmt.Errorf("%w: slot is required", ErrInvalidRef)
	}
	if strings.ContainsAny(slot, `/\`) {
		return "", fmt.Errorf("%w: slot %q contains a path separator", ErrInvalidRef, slot)
	}
	owner := strings.TrimSpace(r.Owner)
	if owner == "" {
		return slot, nil
	}
	if strings.ContainsAny(owner, `/\`) {
		return "", fmt.Errorf("%w: owner %q contains a path separator", ErrInvalidRef, owner)
	}
	return owner + "/" + slot, nil
}

// ETag derives the content tag backends stamp on saved documents.
func ETag(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// CheckETag compares the caller's expectation against the stored tag.
func CheckETag(expected, stored string) error {
	if expected == "" || stored == "" || expected == stored {
		return nil
	}
	return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected, stored)
}

// Stamp fills the meta a backend returns after writing data.
func Stamp(meta Meta, data []byte, now time.Time) Meta {
	out := cloneMeta(meta)
	out.SnapshotID = uuid.NewString()
	out.ETag = ETag(data)
	out.UpdatedAt = now.UTC()
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}

// CloneMeta returns a copy of meta that shares no maps with it.
func CloneMeta(meta Meta) Meta {
	return cloneMeta(meta)
}
