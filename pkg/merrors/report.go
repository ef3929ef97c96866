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

package merrors

import "sync"

// Warning is a scoped, non-fatal failure surfaced on an operation
// Report instead of aborting it.
type Warning struct {
	Path string
	Kind Kind
	Msg  string
}

// Report accumulates the touched CRNs and scoped warnings produced by a
// single merger invocation. Safe for concurrent use by the merger's own
// worker goroutines; the orchestrator reads it only after the merger's
// errgroup has been waited on.
type Report struct {
	mu       sync.Mutex
	Touched  []string
	Warnings []Warning
}

// AddTouched records a CRN (or output path) written by the merger.
func (r *Report) AddTouched(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Touched = append(r.Touched, path)
}

// AddWarning records a scoped failure on a single mod file.
func (r *Report) AddWarning(path string, kind Kind, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, Warning{Path: path, Kind: kind, Msg: msg})
}

// Merge folds other's touched paths and warnings into r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	other.mu.Lock()
	touched := append([]string(nil), other.Touched...)
	warnings := append([]Warning(nil), other.Warnings...)
	other.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Touched = append(r.Touched, touched...)
	r.Warnings = append(r.Warnings, warnings...)
}
