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

// Package webauth keeps a steamcommunity.com web session alive next to the
// Steam client login: QR sign-in, refresh token exchange and cookie-bearing
// HTTP clients for pages the client API cannot reach.
package webauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/shared/httpclient"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/steamworks"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/webauth/authapi"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	// ExpiryMargin is how long before its exp claim an access token is
	// already treated as expired.
	ExpiryMargin = 5 * time.Minute
	// RefreshTimeout bounds a whole refresh attempt.
	RefreshTimeout = 30 * time.Second
	// QRTimeout bounds waiting for a QR login to be approved.
	QRTimeout = 5 * time.Minute

	// CommunityURL is where the session cookies are scoped.
	CommunityURL = "https://steamcommunity.com"

	defaultDeviceName = "Zaparoo Workshop"
	sessionIDBytes    = 12
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrLoginRejected    = errors.New("login rejected")
)

// State is how much of a web session is held.
type State int

const (
	StateNone State = iota
	StateRefreshOnly
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateRefreshOnly:
		return "refresh-only"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "none"
	}
}

// Connection is one transient session with the account service.
type Connection interface {
	BeginQR(ctx context.Context, deviceName string) (*authapi.Challenge, error)
	PollQR(ctx context.Context, ch *authapi.Challenge) (authapi.PollResult, error)
	LogOn(ctx context.Context, accountName, refreshToken string) (uint64, error)
	GenerateAccessToken(ctx context.Context, steamID uint64, refreshToken string) (authapi.Tokens, error)
	Close() error
}

// Dialer opens a Connection.
type Dialer func(ctx context.Context) (Connection, error)

// DialAPI dials the Steam Web API authentication service.
func DialAPI(ctx context.Context) (Connection, error) {
	return authapi.Dial(ctx) //nolint:wrapcheck // constructor only
}

// CredentialStore persists the web session. config.Instance implements it.
type CredentialStore interface {
	Credentials() config.Auth
	SaveCredentials(auth config.Auth) error
	ClearCredentials() error
}

// Channel holds the web session and refreshes it on demand.
type Channel struct {
	store      CredentialStore
	dial       Dialer
	clock      clockwork.Clock
	refresh    singleflight.Group
	auth       config.Auth
	community  *url.URL
	DeviceName string
	mu         syncutil.RWMutex
}

// New loads stored credentials. A stored access token that is already
// expired is kept on disk but not used.
func New(store CredentialStore, dial Dialer, clock clockwork.Clock) *Channel {
	c := &Channel{
		store:      store,
		dial:       dial,
		clock:      clock,
		DeviceName: defaultDeviceName,
	}
	c.community, _ = url.Parse(CommunityURL)

	auth := store.Credentials()
	registerSecrets(auth)
	if auth.AccessToken != "" && IsExpired(auth.AccessToken, clock.Now()) {
		log.Info().Str("account", auth.AccountName).Msg("stored access token expired")
		auth.AccessToken = ""
	}
	c.auth = auth
	log.Info().
		Str("state", c.State().String()).
		Str("account", auth.AccountName).
		Msg("web auth initialized")
	return c
}

// WithCommunityURL scopes session cookies to another host. Used by tests.
func (c *Channel) WithCommunityURL(raw string) *Channel {
	if u, err := url.Parse(raw); err == nil {
		c.community = u
	}
	return c
}

func registerSecrets(auth config.Auth) {
	helpers.RedactSecret(auth.AccessToken)
	helpers.RedactSecret(auth.RefreshToken)
}

// IsExpired reports whether token expires within ExpiryMargin of now. A
// token without a readable exp claim counts as expired.
func IsExpired(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.Before(now.Add(ExpiryMargin))
}

func (c *Channel) snapshot() config.Auth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

func (c *Channel) State() State {
	auth := c.snapshot()
	switch {
	case auth.AccessToken != "" && auth.SteamID != 0 && !IsExpired(auth.AccessToken, c.clock.Now()):
		return StateAuthenticated
	case auth.RefreshToken != "" && auth.AccountName != "":
		return StateRefreshOnly
	default:
		return StateNone
	}
}

// IsAuthenticated reports whether a usable access token is held.
func (c *Channel) IsAuthenticated() bool {
	return c.State() == StateAuthenticated
}

func (c *Channel) HasRefreshToken() bool {
	auth := c.snapshot()
	return auth.RefreshToken != "" && auth.AccountName != ""
}

func (c *Channel) AccountName() string {
	return c.snapshot().AccountName
}

func (c *Channel) SteamID() uint64 {
	return c.snapshot().SteamID
}

func (c *Channel) save(auth config.Auth) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.SaveCredentials(auth); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	registerSecrets(auth)
	c.auth = auth
	return nil
}

func (c *Channel) setAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	helpers.RedactSecret(token)
	c.auth.AccessToken = token
}

func (c *Channel) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = config.Auth{}
	if err := c.store.ClearCredentials(); err != nil {
		log.Error().Err(err).Msg("failed to clear credentials")
	}
}

// Logout forgets the web session.
func (c *Channel) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.ClearCredentials(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	c.auth = config.Auth{}
	log.Info().Msg("logged out of web session")
	return nil
}

func isRejection(err error) bool {
	var resErr *authapi.ResultError
	if !errors.As(err, &resErr) {
		return false
	}
	switch resErr.Result {
	case steamworks.ResultInvalidPassword, steamworks.ResultAccessDenied,
		steamworks.ResultExpired, steamworks.ResultRevoked:
		return true
	default:
		return false
	}
}

// TryRefresh obtains a fresh access token with the stored refresh token
// and reports whether the channel is authenticated afterwards. Concurrent
// calls share one attempt. Rejected credentials are cleared; other
// failures keep them for a later retry.
func (c *Channel) TryRefresh(ctx context.Context) bool {
	if c.IsAuthenticated() {
		return true
	}
	auth := c.snapshot()
	if !c.HasRefreshToken() || auth.SteamID == 0 {
		return false
	}

	ch := c.refresh.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()
		return nil, c.doRefresh(rctx)
	})
	select {
	case <-ctx.Done():
		return false
	case res := <-ch:
		return res.Err == nil
	}
}

func (c *Channel) doRefresh(ctx context.Context) error {
	auth := c.snapshot()
	log.Info().Str("account", auth.AccountName).Msg("refreshing web access token")

	conn, err := c.dial(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to auth service")
		return fmt.Errorf("dial: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing auth connection")
		}
	}()

	steamID, err := conn.LogOn(ctx, auth.AccountName, auth.RefreshToken)
	if err == nil {
		var tokens authapi.Tokens
		tokens, err = conn.GenerateAccessToken(ctx, steamID, auth.RefreshToken)
		if err == nil {
			return c.applyTokens(tokens)
		}
	}

	log.Warn().Err(err).Msg("failed to refresh access token")
	if isRejection(err) {
		log.Info().Msg("clearing rejected web credentials")
		c.clear()
	} else {
		c.setAccessToken("")
	}
	return err
}

func (c *Channel) applyTokens(tokens authapi.Tokens) error {
	if tokens.RefreshToken == "" {
		c.setAccessToken(tokens.AccessToken)
		log.Info().Msg("access token refreshed")
		return nil
	}

	auth := c.snapshot()
	auth.AccessToken = tokens.AccessToken
	auth.RefreshToken = tokens.RefreshToken
	if err := c.save(auth); err != nil {
		c.setAccessToken(tokens.AccessToken)
		log.Warn().Err(err).Msg("failed to persist rotated refresh token")
		return nil
	}
	log.Info().Msg("access token refreshed, refresh token rotated")
	return nil
}

// HTTPClient returns a client carrying the session cookies. Each client
// gets a fresh random sessionid.
func (c *Channel) HTTPClient() (*http.Client, error) {
	auth := c.snapshot()
	if c.State() != StateAuthenticated {
		return nil, ErrNotAuthenticated
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	sessionID, err := newSessionID()
	if err != nil {
		return nil, err
	}
	jar.SetCookies(c.community, []*http.Cookie{
		{Name: "steamLoginSecure", Value: strconv.FormatUint(auth.SteamID, 10) + "%7C%7C" + auth.AccessToken},
		{Name: "sessionid", Value: sessionID},
	})
	return httpclient.NewClientWithJar(jar, httpclient.DefaultTimeoutSeconds*time.Second).Client, nil
}

func newSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Fetch GETs rawURL with the session cookies.
func (c *Channel) Fetch(ctx context.Context, rawURL string) (string, error) {
	hc, err := c.HTTPClient()
	if err != nil {
		return "", err
	}
	body, err := (&httpclient.Client{Client: hc}).GetString(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("authenticated fetch: %w", err)
	}
	return body, nil
}
