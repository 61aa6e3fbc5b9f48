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

// Package command provides an abstraction over exec.Command for testability.
package command

import (
	"context"
	"os/exec"
)

// StartOptions configures how a started process is detached from this one.
type StartOptions struct {
	// Dir is the working directory of the child. Empty means inherit.
	Dir string
	// Env is the full child environment. Nil means inherit.
	Env []string
	// Detach starts the child in its own process group without tying it to
	// ctx, so it survives this process exiting.
	Detach bool
	// HideWindow prevents a console window from appearing (Windows-only).
	HideWindow bool
}

// Executor is the seam between the app and the OS process APIs. Session
// switching relaunches through it and tests replace it with a mock.
type Executor interface {
	// Run executes a command and waits for it to complete.
	Run(ctx context.Context, name string, args ...string) error

	// Start starts a command without waiting for it to complete.
	Start(ctx context.Context, name string, args ...string) error

	// StartWithOptions starts a command with environment, working directory
	// and detach options applied.
	StartWithOptions(ctx context.Context, opts StartOptions, name string, args ...string) error
}

// RealExecutor runs real OS processes.
type RealExecutor struct{}

var _ Executor = (*RealExecutor)(nil)

// Run executes a system command using exec.CommandContext.
//
//nolint:wrapcheck // Wrapping exec errors loses important context
func (*RealExecutor) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Start starts a command without waiting for it to complete.
//
//nolint:wrapcheck // Wrapping exec errors loses important context
func (*RealExecutor) Start(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Start()
}

// StartWithOptions starts a command with the given options.
//
//nolint:wrapcheck // Wrapping exec errors loses important context
func (*RealExecutor) StartWithOptions(
	ctx context.Context,
	opts StartOptions,
	name string,
	args ...string,
) error {
	var cmd *exec.Cmd
	if opts.Detach {
		//nolint:gosec,noctx // detached child must outlive ctx
		cmd = exec.Command(name, args...)
	} else {
		cmd = exec.CommandContext(ctx, name, args...)
	}
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	applySysProcAttr(cmd, opts)
	if err := cmd.Start(); err != nil {
		return err
	}
	if opts.Detach {
		return cmd.Process.Release()
	}
	return nil
}
