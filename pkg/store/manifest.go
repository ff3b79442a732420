package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joshuapare/autorunkit/internal/fsync"
	"github.com/joshuapare/autorunkit/pkg/integrity"
	"github.com/joshuapare/autorunkit/pkg/types"
)

// Target identifies the entry a transaction mutates.
type Target struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	Kind        types.EntryKind `json:"kind"`
	Scope       types.Scope     `json:"scope"`
}

// Source locates the entry's persisted state.
type Source struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
}

// Manifest is the durable record of one transaction. Field order is the
// serialization order.
type Manifest struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	Actor           types.Actor       `json:"actor"`
	Action          types.ActionKind  `json:"action"`
	Target          Target            `json:"target"`
	Source          Source            `json:"source"`
	OriginalValue   string            `json:"originalValue,omitempty"`
	OriginalStatus  types.EntryStatus `json:"originalStatus"`
	Payloads        []string          `json:"payloads"`
	RestoreEligible bool              `json:"restoreEligible"`
	Note            string            `json:"note,omitempty"`
	Status          types.TxStatus    `json:"status"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// NewManifest builds a Pending, restore-eligible manifest for entry.
func NewManifest(id string, at time.Time, actor types.Actor, action types.ActionKind, entry types.Entry) *Manifest {
	return &Manifest{
		ID:        id,
		Timestamp: at.UTC(),
		Actor:     actor,
		Action:    action,
		Target: Target{
			ID:          entry.ID,
			DisplayName: entry.DisplayName,
			Kind:        entry.Kind,
			Scope:       entry.Scope,
		},
		Source:          Source{Path: entry.SourcePath, Name: entry.SourceName},
		OriginalValue:   entry.RawValue,
		OriginalStatus:  entry.Status,
		Payloads:        []string{},
		RestoreEligible: true,
		Status:          types.StatusPending,
	}
}

// Transition moves the manifest to status to, stamping CompletedAt.
// Illegal transitions return an InvalidState error and leave m unchanged.
func (m *Manifest) Transition(to types.TxStatus, at time.Time) error {
	if !m.Status.CanTransition(to) {
		return types.Errorf(types.ErrKindInvalidState, "transaction %s cannot move from %s to %s", m.ID, m.Status, to)
	}
	m.Status = to
	done := at.UTC()
	m.CompletedAt = &done
	return nil
}

// CanRollback reports whether the transaction may be rolled back now.
func (m *Manifest) CanRollback() bool {
	return m.RestoreEligible && m.Status == types.StatusCommitted
}

// AddPayload appends a payload reference.
func (m *Manifest) AddPayload(ref string) {
	m.Payloads = append(m.Payloads, ref)
}

// Marshal returns the canonical serialized form signed by the sidecar.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// SaveManifest writes m and then its integrity sidecar.
func (s *Store) SaveManifest(ctx context.Context, m *Manifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil {
		return errors.New("store: nil manifest")
	}
	dir, err := s.ResolvePath(m.ID)
	if err != nil {
		return err
	}
	data, err := m.Marshal()
	if err != nil {
		return types.Wrap(types.ErrKindStorage, err, "serialize manifest %s", m.ID)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return types.Wrap(types.ErrKindStorage, err, "create transaction directory")
	}
	if err := fsync.WriteFile(filepath.Join(dir, manifestFile), data, 0o600, s.flush); err != nil {
		return types.Wrap(types.ErrKindStorage, err, "write manifest %s", m.ID)
	}
	tag := s.guard.ComputeTag(data)
	if err := fsync.WriteFile(filepath.Join(dir, sidecarFile), []byte(tag), 0o600, s.flush); err != nil {
		return types.Wrap(types.ErrKindStorage, err, "write integrity sidecar %s", m.ID)
	}
	return nil
}

// LoadManifest reads and verifies the manifest of transaction id.
//
// Under FailOpen a legacy (unsigned), mismatched or malformed sidecar is
// logged as a warning and the manifest is returned anyway. Under Strict the
// same conditions return an IntegrityMismatch error.
func (s *Store) LoadManifest(ctx context.Context, id string) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.ResolvePath(id)
	if err != nil {
		return nil, err
	}
	data, err := s.readManifest(dir, id)
	if err != nil {
		return nil, err
	}

	status, err := s.checkSidecar(dir, data)
	if err != nil {
		return nil, err
	}
	s.metrics.Integrity(status.String())
	switch status {
	case IntegrityLegacy:
		s.log.Warn("legacy backup has no integrity sidecar", "id", id)
	case IntegrityMismatch:
		s.log.Warn("manifest integrity mismatch: possible tampering or a backup from another machine or account", "id", id)
	case IntegrityMalformed:
		s.log.Warn("manifest integrity sidecar is malformed: possible corruption", "id", id)
	}
	if status != IntegrityValid && s.policy == Strict {
		return nil, types.Errorf(types.ErrKindIntegrityMismatch, "manifest %s failed integrity verification (%s)", id, status)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, types.Wrap(types.ErrKindStorage, err, "parse manifest %s", id)
	}
	if m.ID != id {
		return nil, types.Errorf(types.ErrKindStorage, "manifest in %s names transaction %q", id, m.ID)
	}
	for _, ref := range m.Payloads {
		if _, err := containedPath(dir, ref); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", id, err)
		}
	}
	if m.Payloads == nil {
		m.Payloads = []string{}
	}
	return &m, nil
}

// VerifyManifest reports the integrity status of transaction id without
// applying the load policy.
func (s *Store) VerifyManifest(ctx context.Context, id string) (IntegrityStatus, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dir, err := s.ResolvePath(id)
	if err != nil {
		return 0, err
	}
	data, err := s.readManifest(dir, id)
	if err != nil {
		return 0, err
	}
	status, err := s.checkSidecar(dir, data)
	if err != nil {
		return 0, err
	}
	s.metrics.Integrity(status.String())
	return status, nil
}

func (s *Store) readManifest(dir, id string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, types.Errorf(types.ErrKindNotFound, "transaction %s not found", id)
	}
	if err != nil {
		return nil, types.Wrap(types.ErrKindStorage, err, "read manifest %s", id)
	}
	return data, nil
}

func (s *Store) checkSidecar(dir string, data []byte) (IntegrityStatus, error) {
	raw, err := os.ReadFile(filepath.Join(dir, sidecarFile))
	if errors.Is(err, fs.ErrNotExist) {
		return IntegrityLegacy, nil
	}
	if err != nil {
		return 0, types.Wrap(types.ErrKindStorage, err, "read integrity sidecar")
	}
	tag := strings.TrimSpace(string(raw))
	if integrity.Malformed(tag) {
		return IntegrityMalformed, nil
	}
	if !s.guard.VerifyTag(data, tag) {
		return IntegrityMismatch, nil
	}
	return IntegrityValid, nil
}

// ListIDs returns the names of the transaction directories under the base
// directory in lexical order, without loading their manifests.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.base)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, types.Wrap(types.ErrKindStorage, err, "read %s", s.base)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() && ValidateID(e.Name()) == nil {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// ListAllManifests loads every transaction under the base directory, newest
// first. Directories whose manifest cannot be loaded are skipped with a
// warning.
func (s *Store) ListAllManifests(ctx context.Context) ([]*Manifest, error) {
	ids, err := s.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*Manifest, 0, len(ids))
	for _, id := range ids {
		m, err := s.LoadManifest(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn("skipping unreadable transaction", "id", id, "error", err)
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
