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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/zaparoo-workshop/internal/telemetry"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/cli"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		telemetry.Flush()
		os.Exit(1)
	}
}

func run() (err error) {
	flags := cli.SetupFlags(flag.CommandLine)
	exit, err := flags.Pre(os.Args[1:], os.Stdout)
	if err != nil || exit {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.Setup(os.Stdout, nil)
	if err != nil {
		return err
	}
	defer telemetry.Close()
	defer app.Close()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("panic: %v", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return app.Run(ctx, flags)
}
