package secrets

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forest6511/vaultfs/pkg/feature"
	"github.com/forest6511/vaultfs/pkg/totp"
)

// Store is the in-memory login store. It is not safe for concurrent use.
type Store struct {
	entries map[uuid.UUID]*LoginEntry
	byPath  map[pathKey]uuid.UUID
	pending []Delta
	sealer  Sealer
	now     func() time.Time
}

type pathKey struct {
	folder, name string
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store sealing field values with sealer.
func New(sealer Sealer, opts ...Option) *Store {
	s := &Store{
		sealer: sealer,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Codec returns the wire codec for secrets records.
func Codec() feature.Codec[State, Delta] {
	return feature.JSONCodec[State, Delta]{ID: FeatureID, Version: WireVersion}
}

// Reset drops every entry and pending delta.
func (s *Store) Reset() {
	s.entries = make(map[uuid.UUID]*LoginEntry)
	s.byPath = make(map[pathKey]uuid.UUID)
	s.pending = nil
}

// Add stores a new login.
func (s *Store) Add(in NewLogin) (LoginEntry, error) {
	folder, err := NormalizeFolder(in.Folder)
	if err != nil {
		return LoginEntry{}, err
	}
	name, err := normalizeName(in.Name)
	if err != nil {
		return LoginEntry{}, err
	}
	if err := validateFields(in.Username, in.Website, in.Comments); err != nil {
		return LoginEntry{}, err
	}

	now := s.now()
	e := LoginEntry{
		ID:        uuid.New(),
		Folder:    folder,
		Name:      name,
		Username:  in.Username,
		Website:   in.Website,
		Comments:  in.Comments,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.setPassword(&e, in.Password); err != nil {
		return LoginEntry{}, err
	}
	if err := s.setTOTP(&e, in.TOTP); err != nil {
		return LoginEntry{}, err
	}
	if err := s.put(e); err != nil {
		return LoginEntry{}, err
	}
	s.record(Delta{Op: OpPut, Entry: cloneEntry(&e), ID: e.ID})
	return *cloneEntry(&e), nil
}

// Update applies p to the entry with id.
func (s *Store) Update(id uuid.UUID, p Patch) (LoginEntry, error) {
	cur, ok := s.entries[id]
	if !ok {
		return LoginEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e := *cloneEntry(cur)

	var err error
	if p.Folder != nil {
		if e.Folder, err = NormalizeFolder(*p.Folder); err != nil {
			return LoginEntry{}, err
		}
	}
	if p.Name != nil {
		if e.Name, err = normalizeName(*p.Name); err != nil {
			return LoginEntry{}, err
		}
	}
	if p.Username != nil {
		e.Username = *p.Username
	}
	if p.Website != nil {
		e.Website = *p.Website
	}
	if p.Comments != nil {
		e.Comments = *p.Comments
	}
	if err := validateFields(e.Username, e.Website, e.Comments); err != nil {
		return LoginEntry{}, err
	}
	if p.Password != nil {
		if err := s.setPassword(&e, *p.Password); err != nil {
			return LoginEntry{}, err
		}
	}
	if p.TOTP != nil {
		if err := s.setTOTP(&e, *p.TOTP); err != nil {
			return LoginEntry{}, err
		}
	}

	e.UpdatedAt = s.now()
	if err := s.put(e); err != nil {
		return LoginEntry{}, err
	}
	s.record(Delta{Op: OpPut, Entry: cloneEntry(&e), ID: id})
	return *cloneEntry(&e), nil
}

// Delete removes the entry with id.
func (s *Store) Delete(id uuid.UUID) error {
	if err := s.remove(id); err != nil {
		return err
	}
	s.record(Delta{Op: OpDelete, ID: id})
	return nil
}

func (s *Store) setPassword(e *LoginEntry, password string) error {
	if password == "" {
		e.EncryptedPassword = nil
		return nil
	}
	sealed, err := s.sealer.Seal([]byte(password), fieldAAD(e.ID, "password"))
	if err != nil {
		return fmt.Errorf("secrets: failed to seal password: %w", err)
	}
	e.EncryptedPassword = sealed
	return nil
}

func (s *Store) setTOTP(e *LoginEntry, uri string) error {
	if uri == "" {
		e.TOTP = nil
		return nil
	}
	secret, params, err := totp.ParseURI(uri)
	if err != nil {
		return err
	}
	sealed, err := s.sealer.Seal([]byte(secret), fieldAAD(e.ID, "totp"))
	if err != nil {
		return fmt.Errorf("secrets: failed to seal TOTP secret: %w", err)
	}
	e.TOTP = &TOTPConfig{EncryptedSecret: sealed, Digits: params.Digits, Period: params.Period}
	return nil
}

// fieldAAD binds a sealed value to its entry and field.
func fieldAAD(id uuid.UUID, field string) []byte {
	return append(id[:], "/"+field...)
}

func (s *Store) record(d Delta) {
	s.pending = append(s.pending, d)
}

// put inserts or replaces e, keeping (folder, name) unique.
func (s *Store) put(e LoginEntry) error {
	key := pathKey{e.Folder, e.Name}
	if other, ok := s.byPath[key]; ok && other != e.ID {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, e.Path())
	}
	if old, ok := s.entries[e.ID]; ok {
		delete(s.byPath, pathKey{old.Folder, old.Name})
	}
	s.entries[e.ID] = cloneEntry(&e)
	s.byPath[key] = e.ID
	return nil
}

func (s *Store) remove(id uuid.UUID) error {
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.byPath, pathKey{e.Folder, e.Name})
	delete(s.entries, id)
	return nil
}

func cloneEntry(e *LoginEntry) *LoginEntry {
	c := *e
	if e.EncryptedPassword != nil {
		c.EncryptedPassword = append([]byte(nil), e.EncryptedPassword...)
	}
	if e.TOTP != nil {
		t := *e.TOTP
		t.EncryptedSecret = append([]byte(nil), e.TOTP.EncryptedSecret...)
		c.TOTP = &t
	}
	return &c
}
