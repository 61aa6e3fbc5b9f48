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

//go:build windows

package command

import (
	"os/exec"
	"syscall"
)

const createNewProcessGroup = 0x00000200

func applySysProcAttr(cmd *exec.Cmd, opts StartOptions) {
	attr := &syscall.SysProcAttr{HideWindow: opts.HideWindow}
	if opts.Detach {
		attr.CreationFlags |= createNewProcessGroup
	}
	cmd.SysProcAttr = attr
}
