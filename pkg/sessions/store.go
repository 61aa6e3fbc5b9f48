// Zaparoo Workshop
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Workshop.
//
// Zaparoo Workshop is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Workshop is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Workshop.  If not, see <http://www.gnu.org/licenses/>.

package sessions

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers/fsutil"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const recordExt = ".toml"

var (
	ErrNotFound      = errors.New("session not found")
	ErrInvalidRecord = errors.New("invalid session record")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ActivePointer holds the id of the active session. config.Instance
// implements it.
type ActivePointer interface {
	ActiveSession() string
	SetActiveSession(id string) error
}

// Store keeps one TOML record per session in a directory. Writes replace
// the whole record atomically; the last writer wins.
type Store struct {
	fs      afero.Fs
	pointer ActivePointer
	dir     string
}

func NewStore(fs afero.Fs, dir string, pointer ActivePointer) *Store {
	return &Store{fs: fs, dir: dir, pointer: pointer}
}

func (s *Store) Dir() string {
	return s.dir
}

// validID rejects ids that could name a file outside the store.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+recordExt)
}

// Encode serializes a session record.
func Encode(session *Session) ([]byte, error) {
	if err := validate.Struct(session); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	data, err := toml.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return data, nil
}

// Decode parses a session record.
func Decode(data []byte) (*Session, error) {
	var session Session
	if err := toml.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if err := validate.Struct(&session); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	session.normalize()
	return &session, nil
}

// Get loads one session.
func (s *Store) Get(id string) (*Session, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	data, err := afero.ReadFile(s.fs, s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	session, err := Decode(data)
	if err != nil {
		return nil, err
	}
	session.Active = session.ID == s.pointer.ActiveSession()
	return session, nil
}

// List loads every readable session, most recently used first. Records
// that fail to parse are skipped.
func (s *Store) List() ([]*Session, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []*Session{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	active := s.pointer.ActiveSession()
	sessions := make([]*Session, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != recordExt {
			continue
		}
		data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, name))
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("failed to read session")
			continue
		}
		session, err := Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("failed to load session")
			continue
		}
		session.Active = session.ID == active
		sessions = append(sessions, session)
	}

	slices.SortStableFunc(sessions, func(a, b *Session) int {
		return cmp.Compare(b.LastUsedAt.UnixNano(), a.LastUsedAt.UnixNano())
	})
	return sessions, nil
}

// Save writes the session record.
func (s *Store) Save(session *Session) error {
	data, err := Encode(session)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(s.fs, s.path(session.ID), data, 0o600); err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	log.Debug().Str("id", session.ID).Str("name", session.Name).Msg("session saved")
	return nil
}

// Delete removes a session. Deleting the active session clears the
// pointer and promotes the most recently used remaining session.
func (s *Store) Delete(id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	err := s.fs.Remove(s.path(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if err == nil {
		log.Info().Str("id", id).Msg("session deleted")
	}

	if s.pointer.ActiveSession() != id {
		return nil
	}
	if err := s.pointer.SetActiveSession(""); err != nil {
		return fmt.Errorf("failed to clear active session: %w", err)
	}

	remaining, err := s.List()
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return s.SetActive(remaining[0].ID)
	}
	return nil
}

// Active returns the active session, or ErrNotFound when none is set.
func (s *Store) Active() (*Session, error) {
	id := s.pointer.ActiveSession()
	if id == "" {
		return nil, ErrNotFound
	}
	return s.Get(id)
}

func (s *Store) SetActive(id string) error {
	if err := s.pointer.SetActiveSession(id); err != nil {
		return fmt.Errorf("failed to set active session: %w", err)
	}
	log.Info().Str("id", id).Msg("active session set")
	return nil
}

// FindByAppID returns the most recently used session for appID.
func (s *Store) FindByAppID(appID uint32) (*Session, bool) {
	sessions, err := s.List()
	if err != nil {
		return nil, false
	}
	for _, session := range sessions {
		if session.AppID == appID {
			return session, true
		}
	}
	return nil, false
}
