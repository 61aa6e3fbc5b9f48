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
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers/syncutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const redacted = "[REDACTED]"

// minSecretLen keeps short values like "1" from wiping unrelated log text.
const minSecretLen = 8

// RedactingWriter masks registered secrets and the user's home directory
// in everything written through it.
type RedactingWriter struct {
	w       io.Writer
	home    string
	secrets []string
	mu      syncutil.RWMutex
}

func NewRedactingWriter(w io.Writer) *RedactingWriter {
	home, _ := os.UserHomeDir()
	return &RedactingWriter{w: w, home: home}
}

// Register adds a value that must never reach the log output.
func (r *RedactingWriter) Register(secret string) {
	if len(secret) < minSecretLen {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.secrets {
		if s == secret {
			return
		}
	}
	r.secrets = append(r.secrets, secret)
	// longest first so a secret containing another is masked whole
	sort.Slice(r.secrets, func(i, j int) bool {
		return len(r.secrets[i]) > len(r.secrets[j])
	})
}

func (r *RedactingWriter) Write(p []byte) (int, error) {
	r.mu.RLock()
	out := p
	for _, s := range r.secrets {
		out = bytes.ReplaceAll(out, []byte(s), []byte(redacted))
	}
	r.mu.RUnlock()

	if r.home != "" {
		out = bytes.ReplaceAll(out, []byte(r.home), []byte("~"))
		// JSON log lines escape backslashes in Windows paths
		if escaped := strings.ReplaceAll(r.home, `\`, `\\`); escaped != r.home {
			out = bytes.ReplaceAll(out, []byte(escaped), []byte("~"))
		}
	}

	if _, err := r.w.Write(out); err != nil {
		return 0, err //nolint:wrapcheck // passthrough writer
	}
	return len(p), nil
}

var logRedactor = NewRedactingWriter(io.Discard)

// RedactSecret registers a value with the global log redactor.
func RedactSecret(secret string) {
	logRedactor.Register(secret)
}

// InitLogging sets up the global logger writing to a rotating file in
// logDir plus any extra writers, all passed through the redactor.
func InitLogging(logDir string, debug bool, writers ...io.Writer) error {
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return err //nolint:wrapcheck // caller adds context
	}

	logWriters := []io.Writer{&lumberjack.Logger{
		Filename:   filepath.Join(logDir, config.LogFile),
		MaxSize:    1,
		MaxBackups: 2,
	}}
	logWriters = append(logWriters, writers...)

	logRedactor.mu.Lock()
	logRedactor.w = io.MultiWriter(logWriters...)
	logRedactor.mu.Unlock()

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = log.Output(logRedactor).
		With().Timestamp().Caller().Logger()

	return nil
}

// LogWriter returns the redacting writer behind the global logger so
// extra sinks can be chained next to it.
func LogWriter() io.Writer {
	return logRedactor
}
