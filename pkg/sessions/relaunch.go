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
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers/command"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// RelaunchDelay is how long to wait between shutting down the Steam API and
// starting the new process.
// TODO: poll for the client releasing its IPC sockets instead of sleeping,
// once there is a documented signal for it.
const RelaunchDelay = 500 * time.Millisecond

const (
	envAppID  = "SteamAppId"
	envGameID = "SteamGameId"
)

var ErrNoExecutable = errors.New("executable path unknown")

// Relauncher restarts the process bound to a different AppId. The Steam
// API cannot be rebound within one process.
type Relauncher struct {
	cmd     command.Executor
	clock   clockwork.Clock
	environ func() []string
	exe     string
	dir     string
	args    []string
	Delay   time.Duration
}

// NewRelauncher creates a relauncher that starts exe with args in dir.
func NewRelauncher(cmd command.Executor, clock clockwork.Clock, exe, dir string, args []string) *Relauncher {
	return &Relauncher{
		cmd:     cmd,
		clock:   clock,
		environ: os.Environ,
		exe:     exe,
		dir:     dir,
		args:    args,
		Delay:   RelaunchDelay,
	}
}

// Relaunch runs shutdown, waits Delay and starts a detached copy of the
// executable with the AppId in its environment. On success the caller
// must exit.
func (r *Relauncher) Relaunch(ctx context.Context, shutdown func(), appID uint32) error {
	if r.exe == "" {
		return ErrNoExecutable
	}

	log.Info().Msg("shutting down steam api before restart")
	if shutdown != nil {
		shutdown()
	}
	r.clock.Sleep(r.Delay)

	env := RelaunchEnv(r.environ(), appID)
	log.Info().Uint32("appid", appID).Str("exe", r.exe).Msg("restarting application")
	err := r.cmd.StartWithOptions(ctx, command.StartOptions{
		Dir:    r.dir,
		Env:    env,
		Detach: true,
	}, r.exe, r.args...)
	if err != nil {
		return fmt.Errorf("failed to start new process: %w", err)
	}
	return nil
}

// RelaunchEnv returns base with the Steam AppId variables set to appID.
func RelaunchEnv(base []string, appID uint32) []string {
	id := strconv.FormatUint(uint64(appID), 10)
	env := make([]string, 0, len(base)+2)
	for _, kv := range base {
		if strings.HasPrefix(kv, envAppID+"=") || strings.HasPrefix(kv, envGameID+"=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env, envAppID+"="+id, envGameID+"="+id)
}
