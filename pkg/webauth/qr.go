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

package webauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/webauth/authapi"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrQRTimeout = errors.New("qr login was not approved in time")

// LoginQR signs in by QR code. onChallenge receives the challenge URL
// first and again whenever the service rotates it; it runs on its own
// goroutine so rendering never delays polling. LoginQR blocks until the
// login is approved, ctx is done or QRTimeout passes. On approval all
// credentials are stored in one write.
func (c *Channel) LoginQR(ctx context.Context, onChallenge func(url string)) error {
	log.Info().Msg("starting qr login")
	ctx, cancel := context.WithTimeout(ctx, QRTimeout)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to auth service: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing auth connection")
		}
	}()

	challenge, err := conn.BeginQR(ctx, c.DeviceName)
	if err != nil {
		return fmt.Errorf("failed to start qr session: %w", err)
	}

	urls := make(chan string, 4)
	urls <- challenge.URL

	var result authapi.PollResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(urls)
		res, err := c.pollApproval(gctx, conn, challenge, urls)
		result = res
		return err
	})
	g.Go(func() error {
		for u := range urls {
			if onChallenge != nil {
				onChallenge(u)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrQRTimeout
		}
		return err
	}
	log.Info().Str("account", result.AccountName).Msg("qr login approved")

	steamID, err := conn.LogOn(ctx, result.AccountName, result.RefreshToken)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginRejected, err)
	}

	auth := config.Auth{
		RefreshToken: result.RefreshToken,
		AccessToken:  result.AccessToken,
		AccountName:  result.AccountName,
		SteamID:      steamID,
	}
	if err := c.save(auth); err != nil {
		return err
	}
	log.Info().Uint64("steamid", steamID).Msg("web login complete")
	return nil
}

func (c *Channel) pollApproval(
	ctx context.Context,
	conn Connection,
	challenge *authapi.Challenge,
	urls chan string,
) (authapi.PollResult, error) {
	log.Debug().Msg("waiting for qr approval")
	for {
		select {
		case <-ctx.Done():
			return authapi.PollResult{}, fmt.Errorf("qr login: %w", ctx.Err())
		case <-c.clock.After(challenge.PollInterval):
		}

		res, err := conn.PollQR(ctx, challenge)
		if err != nil {
			return authapi.PollResult{}, fmt.Errorf("qr poll: %w", err)
		}
		if res.NewURL != "" {
			log.Debug().Msg("qr challenge rotated")
			select {
			case urls <- res.NewURL:
			case <-ctx.Done():
				return authapi.PollResult{}, fmt.Errorf("qr login: %w", ctx.Err())
			}
		}
		if res.Approved() {
			return res, nil
		}
	}
}
