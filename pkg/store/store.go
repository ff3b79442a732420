// Package store persists transaction manifests and their pre-mutation
// payloads on the local filesystem.
//
// Layout, one directory per transaction:
//
//	<base>/<id>/manifest.json
//	<base>/<id>/manifest.json.hmac
//	<base>/<id>/files/<relativeName>
//	<base>/<id>/registry/<sanitizedValueName>.json
//
// Every file is written with a temp-file + sync + rename, so a reader sees
// either the old or the new content. The manifest and its integrity sidecar
// are two separate writes; a crash between them leaves a manifest whose tag
// no longer matches, which loads as a tamper warning under the default
// policy.
//
// The store holds no locks. Callers must not mutate the same transaction id
// from two goroutines at once.
package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/joshuapare/autorunkit/internal/clock"
	"github.com/joshuapare/autorunkit/internal/fsync"
	"github.com/joshuapare/autorunkit/internal/metrics"
	"github.com/joshuapare/autorunkit/pkg/integrity"
	"github.com/joshuapare/autorunkit/pkg/types"
)

const (
	manifestFile = "manifest.json"
	sidecarFile  = "manifest.json.hmac"
	filesDir     = "files"
	registryDir  = "registry"
)

// Options configures a Store.
type Options struct {
	// BaseDir is the directory that holds one subdirectory per transaction.
	// Required.
	BaseDir string

	// Guard signs and verifies manifests. Required.
	Guard *integrity.Guard

	// Clock supplies purge cutoffs and payload timestamps. Default: clock.Real().
	Clock clock.Clock

	// Logger receives integrity warnings. Default: discard.
	Logger *slog.Logger

	// Flush selects the durability of each write. Default: fsync.FlushAuto.
	Flush fsync.FlushMode

	// IntegrityPolicy decides what LoadManifest does with a missing or bad
	// sidecar. Default: FailOpen.
	IntegrityPolicy IntegrityPolicy

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Store is the on-disk transaction store.
type Store struct {
	base    string
	guard   *integrity.Guard
	clock   clock.Clock
	log     *slog.Logger
	flush   fsync.FlushMode
	policy  IntegrityPolicy
	metrics *metrics.Metrics
}

// New validates opts and returns a Store. The base directory is created
// lazily by the first write.
func New(opts Options) (*Store, error) {
	if strings.TrimSpace(opts.BaseDir) == "" {
		return nil, errors.New("store: base directory is required")
	}
	if opts.Guard == nil {
		return nil, errors.New("store: integrity guard is required")
	}
	s := &Store{
		base:    filepath.Clean(opts.BaseDir),
		guard:   opts.Guard,
		clock:   opts.Clock,
		log:     opts.Logger,
		flush:   opts.Flush,
		policy:  opts.IntegrityPolicy,
		metrics: opts.Metrics,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string { return s.base }

// FlushMode returns the durability mode used for writes, so restores can
// write live files the same way.
func (s *Store) FlushMode() fsync.FlushMode { return s.flush }

// ValidateID checks that id can safely name a transaction directory.
func ValidateID(id string) error {
	reason := ""
	switch {
	case strings.TrimSpace(id) == "":
		reason = "empty"
	case id == ".":
		reason = "reserved name"
	case len(id) > types.MaxTransactionIDLen:
		reason = fmt.Sprintf("longer than %d bytes", types.MaxTransactionIDLen)
	case strings.Contains(id, ".."):
		reason = "contains '..'"
	default:
		for _, r := range id {
			if unicode.IsControl(r) {
				reason = "contains a control character"
				break
			}
			if strings.ContainsRune(`/\:<>"|?*`, r) {
				reason = fmt.Sprintf("contains %q", r)
				break
			}
		}
	}
	if reason == "" {
		return nil
	}
	return types.Errorf(types.ErrKindInvalidTransactionID, "invalid transaction id %q: %s", id, reason)
}

// ResolvePath returns the directory of transaction id.
func (s *Store) ResolvePath(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.base, id), nil
}

// CreateDirectory creates the directory of transaction id.
func (s *Store) CreateDirectory(id string) error {
	dir, err := s.ResolvePath(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return types.Wrap(types.ErrKindStorage, err, "create transaction directory")
	}
	return nil
}

// DeleteTransaction removes the directory of transaction id and everything
// in it. Deleting a transaction that does not exist succeeds.
func (s *Store) DeleteTransaction(id string) error {
	dir, err := s.ResolvePath(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return types.Wrap(types.ErrKindStorage, err, "delete transaction %s", id)
	}
	return nil
}

// PayloadPath resolves ref, a slash-separated path relative to the
// transaction directory, to an absolute path. References that are absolute
// or resolve outside the transaction directory are rejected.
func (s *Store) PayloadPath(id, ref string) (string, error) {
	dir, err := s.ResolvePath(id)
	if err != nil {
		return "", err
	}
	return containedPath(dir, ref)
}

func containedPath(dir, ref string) (string, error) {
	native := filepath.FromSlash(ref)
	if ref == "" || filepath.IsAbs(native) || filepath.VolumeName(native) != "" || strings.HasPrefix(ref, "/") {
		return "", types.Errorf(types.ErrKindStorage, "payload reference %q is not relative", ref)
	}
	full := filepath.Join(dir, native)
	rel, err := filepath.Rel(dir, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", types.Errorf(types.ErrKindStorage, "payload reference %q escapes the transaction directory", ref)
	}
	return full, nil
}
