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

package helpers

import (
	"context"
	"fmt"
	"runtime"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers/command"
)

// OpenFolder opens path in the platform file manager. The file manager is
// started and not waited on.
func OpenFolder(ctx context.Context, cmd command.Executor, path string) error {
	var name string
	switch runtime.GOOS {
	case "windows":
		name = "explorer"
	case "darwin":
		name = "open"
	default:
		name = "xdg-open"
	}
	if err := cmd.Start(ctx, name, path); err != nil {
		return fmt.Errorf("failed to open folder: %w", err)
	}
	return nil
}
