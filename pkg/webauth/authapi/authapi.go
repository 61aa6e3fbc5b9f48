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

// Package authapi talks to the Steam Web API IAuthenticationService: QR
// login sessions and access token generation for steamcommunity.com.
package authapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/shared/httpclient"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/steamworks"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const (
	// BaseURL is the Steam Web API host.
	BaseURL = "https://api.steampowered.com"

	service = "IAuthenticationService"

	// platformWebBrowser issues tokens accepted as steamLoginSecure
	// cookies.
	platformWebBrowser = 2
	// renewalAllow lets the server rotate the refresh token.
	renewalAllow = 1

	defaultPollInterval = 5 * time.Second
)

var (
	ErrBadResponse = errors.New("malformed auth service response")
	ErrBadToken    = errors.New("malformed refresh token")
)

// ResultError is a request the service answered with a non-OK EResult.
type ResultError struct {
	Method string
	Result steamworks.EResult
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Method, e.Result.Describe())
}

// Challenge is an open QR login session.
type Challenge struct {
	URL          string
	RequestID    []byte
	ClientID     uint64
	PollInterval time.Duration
}

// PollResult is one poll of a QR login session. Tokens are set once the
// login was approved; NewURL is set when the challenge rotated.
type PollResult struct {
	NewURL       string
	AccountName  string
	AccessToken  string
	RefreshToken string
}

// Approved reports whether the session produced credentials.
func (p PollResult) Approved() bool {
	return p.RefreshToken != ""
}

// Tokens is the result of generating an access token. RefreshToken is
// only set when the server rotated it.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Conn is a session with the authentication service.
type Conn struct {
	http    *httpclient.Client
	baseURL string
}

// Dial opens a connection using a client with the default web timeout.
func Dial(_ context.Context) (*Conn, error) {
	return NewConn(httpclient.NewClientWithTimeout(httpclient.DefaultTimeoutSeconds*time.Second), BaseURL), nil
}

func NewConn(hc *httpclient.Client, baseURL string) *Conn {
	return &Conn{http: hc, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Close releases idle connections.
func (c *Conn) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Conn) call(ctx context.Context, method string, form url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/%s/%s/v1/", c.baseURL, service, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing response body")
		}
	}()

	if raw := resp.Header.Get("X-eresult"); raw != "" {
		code, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: eresult %q", ErrBadResponse, raw)
		}
		if res := steamworks.EResult(code); !res.OK() {
			return &ResultError{Method: method, Result: res}
		}
	}
	if resp.StatusCode != http.StatusOK {
		return &httpclient.StatusError{URL: endpoint, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read body: %w", method, err)
	}
	var envelope struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadResponse, method, err)
	}
	if len(envelope.Response) == 0 {
		return fmt.Errorf("%w: %s: no response object", ErrBadResponse, method)
	}
	if err := json.Unmarshal(envelope.Response, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadResponse, method, err)
	}
	return nil
}

// BeginQR starts a QR login session named after deviceName.
func (c *Conn) BeginQR(ctx context.Context, deviceName string) (*Challenge, error) {
	form := url.Values{}
	form.Set("device_friendly_name", deviceName)
	form.Set("platform_type", strconv.Itoa(platformWebBrowser))

	var resp struct {
		ClientID     string  `json:"client_id"`
		ChallengeURL string  `json:"challenge_url"`
		RequestID    string  `json:"request_id"`
		Interval     float64 `json:"interval"`
	}
	if err := c.call(ctx, "BeginAuthSessionViaQR", form, &resp); err != nil {
		return nil, err
	}

	clientID, err := strconv.ParseUint(resp.ClientID, 10, 64)
	if err != nil || resp.ChallengeURL == "" {
		return nil, fmt.Errorf("%w: missing client id or challenge", ErrBadResponse)
	}
	requestID, err := base64.StdEncoding.DecodeString(resp.RequestID)
	if err != nil {
		return nil, fmt.Errorf("%w: request id: %w", ErrBadResponse, err)
	}

	interval := time.Duration(resp.Interval * float64(time.Second))
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Challenge{
		ClientID:     clientID,
		RequestID:    requestID,
		URL:          resp.ChallengeURL,
		PollInterval: interval,
	}, nil
}

// PollQR checks whether the QR session was approved. A rotated challenge
// replaces the client id in ch.
func (c *Conn) PollQR(ctx context.Context, ch *Challenge) (PollResult, error) {
	form := url.Values{}
	form.Set("client_id", strconv.FormatUint(ch.ClientID, 10))
	form.Set("request_id", base64.StdEncoding.EncodeToString(ch.RequestID))

	var resp struct {
		NewClientID     string `json:"new_client_id"`
		NewChallengeURL string `json:"new_challenge_url"`
		RefreshToken    string `json:"refresh_token"`
		AccessToken     string `json:"access_token"`
		AccountName     string `json:"account_name"`
	}
	if err := c.call(ctx, "PollAuthSessionStatus", form, &resp); err != nil {
		return PollResult{}, err
	}

	res := PollResult{
		AccountName:  resp.AccountName,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	if resp.NewChallengeURL != "" {
		if id, err := strconv.ParseUint(resp.NewClientID, 10, 64); err == nil {
			ch.ClientID = id
		}
		ch.URL = resp.NewChallengeURL
		res.NewURL = resp.NewChallengeURL
	}
	return res, nil
}

// LogOn resolves the account a refresh token belongs to. Expired tokens
// are rejected locally with ResultExpired.
func (c *Conn) LogOn(_ context.Context, accountName, refreshToken string) (uint64, error) {
	claims := &jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(refreshToken, claims)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadToken, err)
	}
	steamID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || steamID == 0 {
		return 0, fmt.Errorf("%w: subject %q", ErrBadToken, claims.Subject)
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return 0, &ResultError{Method: "LogOn", Result: steamworks.ResultExpired}
	}
	log.Debug().Str("account", accountName).Msg("resolved account from refresh token")
	return steamID, nil
}

// GenerateAccessToken exchanges a refresh token for a web access token.
func (c *Conn) GenerateAccessToken(ctx context.Context, steamID uint64, refreshToken string) (Tokens, error) {
	form := url.Values{}
	form.Set("refresh_token", refreshToken)
	form.Set("steamid", strconv.FormatUint(steamID, 10))
	form.Set("renewal_type", strconv.Itoa(renewalAllow))

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.call(ctx, "GenerateAccessTokenForApp", form, &resp); err != nil {
		return Tokens{}, err
	}
	if resp.AccessToken == "" {
		return Tokens{}, fmt.Errorf("%w: no access token", ErrBadResponse)
	}
	return Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}
