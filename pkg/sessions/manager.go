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
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/community"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/steam"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var ErrNoSessions = errors.New("no sessions exist")

// Context is the session a process runs under. It is built once at
// startup and never changes; switching sessions restarts the process.
type Context struct {
	SessionID string
	GameName  string
	AppID     uint32
}

// TagSource fetches the tag taxonomy of a workshop.
type TagSource interface {
	Tags(ctx context.Context, appID uint32, forceRefresh bool) (map[string][]string, error)
}

// AppValidator checks that an AppId has a workshop.
type AppValidator interface {
	Validate(ctx context.Context, appID uint32) community.Result
}

// Options locates the marker files and the local Steam install.
type Options struct {
	ExeDir   string
	WorkDir  string
	SteamDir string
}

// Manager creates, switches and refreshes sessions.
type Manager struct {
	store      *Store
	tags       TagSource
	validator  AppValidator
	relauncher *Relauncher
	fs         afero.Fs
	clock      clockwork.Clock
	active     atomic.Pointer[Session]
	opts       Options
}

func NewManager(
	store *Store,
	tags TagSource,
	validator AppValidator,
	relauncher *Relauncher,
	fs afero.Fs,
	clock clockwork.Clock,
	opts Options,
) *Manager {
	return &Manager{
		store:      store,
		tags:       tags,
		validator:  validator,
		relauncher: relauncher,
		fs:         fs,
		clock:      clock,
		opts:       opts,
	}
}

func (m *Manager) Store() *Store {
	return m.store
}

// Active returns the active session snapshot, or nil before Bootstrap.
// The snapshot is replaced, never modified, so it is safe to read from
// any goroutine.
func (m *Manager) Active() *Session {
	return m.active.Load()
}

func (m *Manager) publish(session *Session) {
	snap := session.Clone()
	snap.Active = true
	m.active.Store(snap)
}

// Create makes a session for appID and persists it. Failing to fetch tags
// is logged and leaves the taxonomy empty for a later refresh.
func (m *Manager) Create(ctx context.Context, appID uint32, gameName string) (*Session, error) {
	if gameName == "" {
		if name, ok := steam.LookupAppName(m.opts.SteamDir, appID); ok {
			gameName = name
		} else {
			gameName = fmt.Sprintf("Game %d", appID)
		}
	}

	session := New(appID, gameName, m.clock.Now().UTC())

	log.Info().Str("game", gameName).Msg("fetching tags for new session")
	tags, err := m.tags.Tags(ctx, appID, false)
	if err != nil {
		log.Warn().Err(err).Uint32("appid", appID).Msg("failed to fetch tags for session")
	} else {
		session.TagsByCategory = tags
		session.TagsLastUpdated = m.clock.Now().UTC()
	}

	if err := m.store.Save(session); err != nil {
		return nil, err
	}
	log.Info().Str("id", session.ID).Str("name", session.Name).Msg("session created")
	return session, nil
}

// Switch makes session active and restarts the process bound to its
// AppId. shutdown must drain and stop the Steam API. When Switch returns
// nil the new process is running and the caller must exit.
func (m *Manager) Switch(ctx context.Context, session *Session, shutdown func()) error {
	log.Info().
		Str("name", session.Name).
		Uint32("appid", session.AppID).
		Msg("switching session")

	if err := m.store.SetActive(session.ID); err != nil {
		return err
	}
	if err := WriteMarker(m.fs, session.AppID, m.opts.ExeDir, m.opts.WorkDir); err != nil {
		return err
	}
	return m.relauncher.Relaunch(ctx, shutdown, session.AppID)
}

// RefreshTags refetches the taxonomy of session and persists it.
func (m *Manager) RefreshTags(ctx context.Context, session *Session) error {
	log.Info().Str("name", session.Name).Msg("refreshing tags")

	tags, err := m.tags.Tags(ctx, session.AppID, true)
	if err != nil {
		return fmt.Errorf("failed to refresh tags: %w", err)
	}
	session.TagsByCategory = tags
	session.TagsLastUpdated = m.clock.Now().UTC()

	if err := m.store.Save(session); err != nil {
		return err
	}
	if cur := m.active.Load(); cur != nil && cur.ID == session.ID {
		m.publish(session)
	}
	log.Info().Int("categories", len(tags)).Msg("tags refreshed")
	return nil
}

// Update persists changes to session, such as custom tags or remembered
// files, and republishes it when active.
func (m *Manager) Update(session *Session) error {
	if err := m.store.Save(session); err != nil {
		return err
	}
	if cur := m.active.Load(); cur != nil && cur.ID == session.ID {
		m.publish(session)
	}
	return nil
}

// EnsureFromMarker wraps the AppId of a legacy steam_appid.txt in a session
// when none exists for it yet. It returns nil when there is no marker or
// the AppId does not validate.
func (m *Manager) EnsureFromMarker(ctx context.Context) (*Session, error) {
	appID, ok := ReadMarker(m.fs, m.opts.ExeDir)
	if !ok {
		return nil, nil //nolint:nilnil // no marker is not an error
	}
	if existing, ok := m.store.FindByAppID(appID); ok {
		return existing, nil
	}

	log.Info().Uint32("appid", appID).Msg("creating session from appid marker")
	res := m.validator.Validate(ctx, appID)
	if !res.Valid {
		log.Warn().Uint32("appid", appID).Str("reason", res.ErrorKey).Msg("marker appid did not validate")
		return nil, nil //nolint:nilnil // invalid marker is ignored
	}

	session, err := m.Create(ctx, appID, res.GameName)
	if err != nil {
		return nil, err
	}
	if err := m.store.SetActive(session.ID); err != nil {
		return nil, err
	}
	session.Active = true
	return session, nil
}

// Bootstrap resolves the session this process runs under: the legacy
// marker is migrated first, then the active pointer is used, then the
// most recently used session. The session is touched and published.
func (m *Manager) Bootstrap(ctx context.Context) (Context, error) {
	if _, err := m.EnsureFromMarker(ctx); err != nil {
		log.Error().Err(err).Msg("failed to create session from appid marker")
	}

	session, err := m.store.Active()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Msg("failed to load active session")
		}
		sessions, listErr := m.store.List()
		if listErr != nil {
			return Context{}, listErr
		}
		if len(sessions) == 0 {
			return Context{}, ErrNoSessions
		}
		session = sessions[0]
		if err := m.store.SetActive(session.ID); err != nil {
			return Context{}, err
		}
	}

	if err := m.Touch(session); err != nil {
		log.Warn().Err(err).Msg("failed to update session last used time")
	}
	m.publish(session)

	log.Info().
		Str("session", session.Name).
		Uint32("appid", session.AppID).
		Msg("session context initialized")
	return Context{
		SessionID: session.ID,
		AppID:     session.AppID,
		GameName:  session.DisplayName(),
	}, nil
}

// Touch marks session as used now.
func (m *Manager) Touch(session *Session) error {
	session.LastUsedAt = m.clock.Now().UTC()
	return m.store.Save(session)
}

// Validate checks appID with the manager's validator.
func (m *Manager) Validate(ctx context.Context, appID uint32) community.Result {
	return m.validator.Validate(ctx, appID)
}

func (m *Manager) List() ([]*Session, error) {
	return m.store.List()
}

func (m *Manager) Get(id string) (*Session, error) {
	return m.store.Get(id)
}

func (m *Manager) Delete(id string) error {
	return m.store.Delete(id)
}

// Watch calls onChange for every external change to session records until
// ctx is done.
func (m *Manager) Watch(ctx context.Context, onChange func(id string)) error {
	if err := m.fs.MkdirAll(m.store.Dir(), 0o750); err != nil {
		return fmt.Errorf("failed to create sessions dir: %w", err)
	}
	return Watch(ctx, m.store.Dir(), onChange)
}
