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

package config

// Auth is the persisted web session. The four fields are always written
// together.
type Auth struct {
	RefreshToken string `toml:"refresh_token,omitempty"`
	AccessToken  string `toml:"access_token,omitempty"`
	AccountName  string `toml:"account_name,omitempty"`
	SteamID      uint64 `toml:"steam_id,omitempty"`
}

// Empty reports whether no credential is stored.
func (a Auth) Empty() bool {
	return a.RefreshToken == "" && a.AccessToken == "" && a.AccountName == "" && a.SteamID == 0
}

func (c *Instance) Credentials() Auth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Auth
}

// SaveCredentials replaces all stored credential fields and persists the
// settings file in a single write. On failure the in-memory values are
// rolled back so memory and disk never disagree.
func (c *Instance) SaveCredentials(auth Auth) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.vals.Auth
	c.vals.Auth = auth
	if err := c.saveLocked(); err != nil {
		c.vals.Auth = prev
		return err
	}
	return nil
}

func (c *Instance) ClearCredentials() error {
	return c.SaveCredentials(Auth{})
}
