// Mod Merge Core
// Copyright (c) 2026 Mod Merge Core Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Mod Merge Core.
//
// Mod Merge Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Mod Merge Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Mod Merge Core.  If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// LogFile is the rotated log filename written under the storage root.
const LogFile = "mergecore.log"

// InitLogging points the global zerolog logger at a rotating file sink
// under the snapshot's storage root, plus any extra writers the host
// supplies (e.g. stderr for an interactive session). Mirrors the
// teacher's own InitLogging (pkg/helpers/logging.go): a lumberjack.Logger
// feeding an io.MultiWriter, stack traces marshaled through
// zerolog/pkgerrors.
func (s Snapshot) InitLogging(extra ...io.Writer) error {
	if err := os.MkdirAll(s.storeDir, 0o750); err != nil {
		return err
	}

	writers := []io.Writer{&lumberjack.Logger{
		Filename:   filepath.Join(s.storeDir, LogFile),
		MaxSize:    1,
		MaxBackups: 2,
	}}
	writers = append(writers, extra...)

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	log.Logger = log.Output(io.MultiWriter(writers...)).With().Timestamp().Caller().Logger()
	return nil
}
