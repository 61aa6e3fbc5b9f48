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

package workshop

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/steamworks"
	"github.com/go-playground/validator/v10"
)

var ErrInvalidRequest = errors.New("invalid request")

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateRequest describes a new item. Title and content folder are
// required.
type CreateRequest struct {
	Title         string                `validate:"required,max=128"`
	Description   string                `validate:"max=8000"`
	ContentFolder string                `validate:"required,dir"`
	PreviewPath   string                `validate:"omitempty,file"`
	ChangeNote    string                `validate:"max=8000"`
	Tags          []string              `validate:"dive,required,max=255"`
	Visibility    steamworks.Visibility `validate:"min=0,max=3"`
}

// Validate checks the request before any native call is made.
func (r CreateRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// UpdateRequest changes an existing item. Empty strings and nil pointers
// leave a field unchanged. Tags follows the same rule: nil leaves the tags
// alone and an empty non-nil slice clears them.
type UpdateRequest struct {
	Visibility    *steamworks.Visibility `validate:"omitempty,min=0,max=3"`
	Title         string                 `validate:"max=128"`
	Description   string                 `validate:"max=8000"`
	ContentFolder string                 `validate:"omitempty,dir"`
	PreviewPath   string                 `validate:"omitempty,file"`
	ChangeNote    string                 `validate:"max=8000"`
	Tags          []string               `validate:"omitempty,dive,required,max=255"`
}

// Validate checks the request before any native call is made.
func (r UpdateRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}
