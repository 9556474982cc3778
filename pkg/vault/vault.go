// Package vault opens and creates vaultfs files and exposes the feature
// stores layered on their record log.
//
// A Session owns the file handle and the key hierarchy. Mutations made
// through Filesystem and Secrets stay in memory until Commit appends them.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/forest6511/vaultfs/pkg/crypto"
	"github.com/forest6511/vaultfs/pkg/feature"
	"github.com/forest6511/vaultfs/pkg/filesystem"
	"github.com/forest6511/vaultfs/pkg/secrets"
	"github.com/forest6511/vaultfs/pkg/storage"
)

// Constants
const (
	FileMode = 0600 // Owner read/write only

	// Disk capacity thresholds
	MinDiskSpaceBytes  = 10 * 1024 * 1024 // 10 MB minimum free space
	DiskWarningPercent = 90               // Warn when disk is 90% full
)

// Errors
var (
	ErrVaultExists      = errors.New("vault: vault already exists at this path")
	ErrVaultNotFound    = errors.New("vault: vault not found at this path")
	ErrClosed           = errors.New("vault: session is closed")
	ErrUnknownFeature   = errors.New("vault: record belongs to an unknown feature")
	ErrBlobNotFound     = errors.New("vault: blob not found")
	ErrInsufficientDisk = errors.New("vault: insufficient disk space")

	// ErrUnlockFailed means a wrong password or a corrupted vault.
	ErrUnlockFailed = storage.ErrUnlockFailed
)

// Config selects the algorithms of a new vault. Zero fields take defaults.
type Config struct {
	Compression   crypto.Compression
	Cipher        crypto.Cipher
	FormatVersion uint16
	// Overwrite replaces an existing file at the path.
	Overwrite bool
	KDF       crypto.KDFParams
}

// DefaultConfig returns XChaCha20-Poly1305 with zstd and the default KDF cost.
func DefaultConfig() Config {
	return Config{
		Compression:   crypto.CompressionZstd,
		Cipher:        crypto.CipherXChaCha20Poly1305,
		FormatVersion: storage.FormatVersion,
		KDF:           crypto.DefaultKDFParams(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Cipher == 0 {
		c.Cipher = d.Cipher
	}
	if c.FormatVersion == 0 {
		c.FormatVersion = d.FormatVersion
	}
	if c.KDF == (crypto.KDFParams{}) {
		c.KDF = d.KDF
	}
	return c
}

// Option configures a Session.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	recoverTornTail bool
	fsOpts          []filesystem.Option
	secretsOpts     []secrets.Option
}

// WithLogger sets the structured logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRecoverTornTail truncates an unconfirmed torn write at the end of the
// log instead of failing the open. Confirmed entries are never dropped.
func WithRecoverTornTail() Option {
	return func(o *options) { o.recoverTornTail = true }
}

// WithFilesystemOptions passes options to the filesystem store.
func WithFilesystemOptions(opts ...filesystem.Option) Option {
	return func(o *options) { o.fsOpts = append(o.fsOpts, opts...) }
}

// WithSecretsOptions passes options to the secrets store.
func WithSecretsOptions(opts ...secrets.Option) Option {
	return func(o *options) { o.secretsOpts = append(o.secretsOpts, opts...) }
}

func newOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Session is an unlocked vault. All methods are safe for concurrent use, but
// the feature stores returned by Filesystem and Secrets are not: callers
// serialize their use against Commit.
type Session struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	header *storage.BootHeader
	keys   *crypto.Keyring
	log    *storage.Log
	logger *slog.Logger

	fs       *filesystem.Store
	secrets  *secrets.Store
	features []feature.Feature
	latest   map[string]storage.Entry // newest entry per feature, payload dropped
	blobs    map[uuid.UUID][]byte     // decrypted blob cache

	replayed int
	closed   bool
}

// Create writes a new, empty vault at path and opens it. The file appears
// atomically: a failed create leaves no partial vault and, with Overwrite,
// keeps the old file.
func Create(path, password string, cfg Config, opts ...Option) (*Session, error) {
	cfg = cfg.withDefaults()
	if cfg.FormatVersion != storage.FormatVersion {
		return nil, fmt.Errorf("%w: cannot create version %d", storage.ErrUnsupportedVersion, cfg.FormatVersion)
	}
	if !cfg.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil, ErrVaultExists
		}
	}
	o := newOptions(opts)
	if err := checkDiskSpaceForWrite(filepath.Dir(path), 0, o.logger); err != nil {
		return nil, err
	}

	h := &storage.BootHeader{
		FormatVersion: cfg.FormatVersion,
		Envelope:      crypto.Envelope{Cipher: cfg.Cipher, Compression: cfg.Compression},
		KDF:           cfg.KDF,
	}
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	copy(h.Salt[:], salt)

	keys, err := deriveKeyring(password, h)
	if err != nil {
		return nil, err
	}
	if err := writeNewVault(path, h, keys.Envelope()); err != nil {
		keys.Wipe()
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		keys.Wipe()
		return nil, fmt.Errorf("vault: failed to open new vault: %w", err)
	}
	return newSession(path, f, h, keys, o)
}

// writeNewVault writes the boot header and an empty subheader to a temporary
// file next to path, syncs it and renames it into place.
func writeNewVault(path string, h *storage.BootHeader, envelopeKey []byte) (err error) {
	dir, name := filepath.Split(path)
	if name == "" {
		return &os.PathError{Op: "create", Path: path, Err: os.ErrInvalid}
	}
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("vault: failed to create vault file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := tmp.Chmod(FileMode); err != nil {
		return fmt.Errorf("vault: failed to set vault permissions: %w", err)
	}
	if err := storage.WriteBootHeader(tmp, h); err != nil {
		return err
	}
	if _, err := storage.InitLog(tmp, h, envelopeKey); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: failed to close vault file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("vault: failed to move vault into place: %w", err)
	}
	return nil
}

// Open unlocks the vault at path. A wrong password yields ErrUnlockFailed.
func Open(path, password string, opts ...Option) (*Session, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrVaultNotFound
		}
		return nil, fmt.Errorf("vault: failed to open vault: %w", err)
	}
	h, err := storage.ReadBootHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	keys, err := deriveKeyring(password, h)
	if err != nil {
		f.Close()
		return nil, err
	}
	return newSession(path, f, h, keys, newOptions(opts))
}

func deriveKeyring(password string, h *storage.BootHeader) (*crypto.Keyring, error) {
	pw := []byte(password)
	defer crypto.SecureWipe(pw)

	master, err := crypto.DeriveMasterKey(pw, h.Salt[:], h.KDF)
	if err != nil {
		return nil, err
	}
	return crypto.NewKeyring(master)
}

// newSession takes ownership of f and keys; both are released on error.
func newSession(path string, f *os.File, h *storage.BootHeader, keys *crypto.Keyring, o options) (_ *Session, err error) {
	defer func() {
		if err != nil {
			keys.Wipe()
			f.Close()
		}
	}()

	l, err := storage.OpenLog(f, h, keys.Envelope())
	if err != nil {
		return nil, err
	}

	s := &Session{
		path:   path,
		f:      f,
		header: h,
		keys:   keys,
		log:    l,
		logger: o.logger.With(slog.String("vault", path)),
		fs:     filesystem.New(o.fsOpts...),
	}
	s.secrets = secrets.New(crypto.NewFieldSealer(keys, secrets.FeatureID, h.Envelope.Cipher), o.secretsOpts...)
	s.features = []feature.Feature{
		feature.Bind[filesystem.State, filesystem.Delta](s.fs, filesystem.Codec()),
		feature.Bind[secrets.State, secrets.Delta](s.secrets, secrets.Codec()),
	}

	if err := s.load(o.recoverTornTail); err != nil {
		return nil, err
	}
	s.checkAndWarnPermissions()
	return s, nil
}

// load rebuilds every feature store from the log.
func (s *Session) load(recoverTornTail bool) error {
	r, err := s.log.ReplaySinceCheckpoint()
	var torn *storage.TornTailError
	if errors.As(err, &torn) && recoverTornTail {
		s.logger.Warn("truncating torn write at end of log",
			slog.Int64("confirmed_end", torn.ConfirmedEnd),
			slog.Int64("dropped_bytes", torn.FileSize-torn.ConfirmedEnd))
		if err := s.log.Truncate(torn.ConfirmedEnd); err != nil {
			return err
		}
		r, err = s.log.ReplaySinceCheckpoint()
	}
	if err != nil {
		return err
	}

	for _, f := range s.features {
		f.Reset()
	}
	s.latest = make(map[string]storage.Entry)
	s.wipeBlobs()
	s.blobs = make(map[uuid.UUID][]byte)
	s.replayed = 0

	if r.Checkpoint != nil {
		for _, e := range r.Snapshots {
			if err := s.dispatch(e, false); err != nil {
				return err
			}
		}
	}
	for _, e := range r.Entries {
		if err := s.dispatch(e, true); err != nil {
			return err
		}
	}

	s.logger.Debug("vault replayed",
		slog.Int("entries", s.replayed),
		slog.Bool("checkpoint", r.Checkpoint != nil),
		slog.Uint64("last_sequence", r.Subheader.LastSequence))
	return nil
}

// dispatch feeds one replayed entry to its feature. Checkpoint and blob
// entries are authenticated by the replay but carry no feature state.
func (s *Session) dispatch(e storage.Entry, checkChain bool) error {
	s.replayed++
	switch e.Header.Kind {
	case storage.KindCheckpoint, storage.KindBlob:
		return nil
	}

	f := s.feature(e.Header.FeatureID)
	if f == nil {
		return fmt.Errorf("%w: %q at offset %d", ErrUnknownFeature, e.Header.FeatureID, e.Offset)
	}
	if prev := s.latest[f.ID()]; checkChain && e.Header.PrevOffset != prev.Offset {
		return fmt.Errorf("%w: %s entry at %d links to %d, previous entry is at %d",
			storage.ErrInconsistent, f.ID(), e.Offset, e.Header.PrevOffset, prev.Offset)
	}
	if err := f.Apply(e.Header.WireVersion, feature.Kind(e.Header.Kind), e.Payload); err != nil {
		return fmt.Errorf("vault: entry at offset %d: %w", e.Offset, err)
	}
	e.Payload = nil
	s.latest[f.ID()] = e
	return nil
}

func (s *Session) feature(id string) feature.Feature {
	for _, f := range s.features {
		if f.ID() == id {
			return f
		}
	}
	return nil
}

// Filesystem returns the virtual filesystem store.
func (s *Session) Filesystem() *filesystem.Store { return s.fs }

// Secrets returns the login store.
func (s *Session) Secrets() *secrets.Store { return s.secrets }

// Path returns the vault file path.
func (s *Session) Path() string { return s.path }

// Header returns the vault's boot header.
func (s *Session) Header() storage.BootHeader { return *s.header }

// Refresh discards uncommitted changes and caches and rebuilds every store
// from the file.
func (s *Session) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	l, err := storage.OpenLog(s.f, s.header, s.keys.Envelope())
	if err != nil {
		return err
	}
	s.log = l
	return s.load(false)
}

// ClearCache drops decrypted blob contents held in memory.
func (s *Session) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wipeBlobs()
}

// wipeBlobs zeroes and drops every cached blob. Callers hold s.mu.
func (s *Session) wipeBlobs() {
	for id, b := range s.blobs {
		crypto.SecureWipe(b)
		delete(s.blobs, id)
	}
}

// Close wipes the key hierarchy and closes the file. Uncommitted changes
// are lost. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.wipeBlobs()
	s.keys.Wipe()
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("vault: failed to close vault: %w", err)
	}
	return nil
}

// checkAndWarnPermissions logs a warning when the vault file is readable by
// group or others. This is advisory only.
func (s *Session) checkAndWarnPermissions() {
	if info, err := s.f.Stat(); err == nil {
		if perm := info.Mode().Perm(); perm&0077 != 0 {
			s.logger.Warn("vault file has insecure permissions",
				slog.String("mode", fmt.Sprintf("%04o", perm)),
				slog.String("expected", "0600"))
		}
	}
}
