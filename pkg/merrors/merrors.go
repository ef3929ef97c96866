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

// Package merrors defines the error taxonomy shared by every merger and
// the staging orchestrator, and the scoped-vs-fatal propagation policy
// between them.
package merrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide whether it is scoped
// to a single mod file or fatal to the whole operation.
type Kind int

const (
	// KindNotFound means an expected stock file was absent.
	KindNotFound Kind = iota
	// KindCodec means a malformed archive, compressed stream, parameter
	// tree, or message file was encountered.
	KindCodec
	// KindSchema means a decoded structure violated an assumption, e.g.
	// an Actor Catalog missing its Actors array.
	KindSchema
	// KindIO means a filesystem permission, disk-full, or link-creation
	// failure.
	KindIO
	// KindConfig means an invalid configured path, e.g. DLC expected but
	// absent.
	KindConfig
	// KindDeployment means a post-condition violation in the link phase.
	KindDeployment
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindCodec:
		return "codec"
	case KindSchema:
		return "schema"
	case KindIO:
		return "io"
	case KindConfig:
		return "config"
	case KindDeployment:
		return "deployment"
	default:
		return "unknown"
	}
}

// MergeError wraps an underlying error with a taxonomy Kind and the
// logical path (CRN, mod root, or unit name) it concerns. Scoped is true
// when the error should be downgraded to a warning annotation on a
// single mod file rather than aborting the enclosing operation (§7
// propagation policy).
type MergeError struct {
	Err    error
	Path   string
	Kind   Kind
	Scoped bool
}

func (e *MergeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// New builds a fatal MergeError.
func New(kind Kind, path string, err error) *MergeError {
	return &MergeError{Kind: kind, Path: path, Err: err}
}

// Scoped builds a MergeError that is safe to downgrade to a warning and
// skip, rather than aborting the enclosing operation.
func Scoped(kind Kind, path string, err error) *MergeError {
	return &MergeError{Kind: kind, Path: path, Err: err, Scoped: true}
}

// IsScoped reports whether err (or any error it wraps) is a MergeError
// marked safe to skip.
func IsScoped(err error) bool {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Scoped
	}
	return false
}

// KindOf extracts the taxonomy Kind from err, defaulting to KindIO for
// plain errors that never went through New/Scoped.
func KindOf(err error) Kind {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindIO
}

// Deployment is a convenience constructor for the post-condition
// failure described in spec §4.8/§8 scenario 6.
func Deployment(msg string) *MergeError {
	return New(KindDeployment, "", errors.New(msg))
}
