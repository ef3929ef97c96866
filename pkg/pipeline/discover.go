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

package pipeline

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/modforge/mergecore/pkg/mapmerge"
	"github.com/modforge/mergecore/pkg/merrors"
)

// mapUnitPattern matches a Map Unit's compressed on-disk path relative
// to a mod's content subtree (spec §3: "Map/{MainField|AocField}/
// {unit}/{unit}_{kind}.mubin"), e.g. "Map/MainField/A-1/A-1_Dynamic.smubin".
var mapUnitPattern = regexp.MustCompile(`^Map/(MainField|AocField)/([^/]+)/([^/]+)_(Static|Dynamic)\.smubin$`)

// bootupPattern matches a language's Bootup pack, e.g. "Pack/Bootup_USen.pack".
var bootupPattern = regexp.MustCompile(`^Pack/Bootup_([A-Za-z]+)\.pack$`)

// listContentFiles enumerates every regular file under layer's content
// subtree, relative to that subtree, skipping the same logs/options/meta
// and top-level-non-.txt paths pkg/stage's own link step skips (spec
// §4.8 step 5) since those were never candidates for merge dispatch
// either.
func (o *Orchestrator) listContentFiles(layer, contentDir string) ([]string, error) {
	root := filepath.Join(layer, filepath.FromSlash(contentDir))
	exists, err := afero.DirExists(o.fs, root)
	if err != nil {
		return nil, merrors.New(merrors.KindIO, root, err)
	}
	if !exists {
		return nil, nil
	}

	var rels []string
	err = afero.Walk(o.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, merrors.New(merrors.KindIO, root, err)
	}
	return rels, nil
}

// discoverMapUnits returns every Map Unit any enabled layer ships, in
// first-seen order, deduplicated.
func (o *Orchestrator) discoverMapUnits(layers []string, contentDir string) ([]mapmerge.Unit, error) {
	seen := make(map[mapmerge.Unit]bool)
	var units []mapmerge.Unit
	for _, layer := range layers {
		rels, err := o.listContentFiles(layer, contentDir)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			m := mapUnitPattern.FindStringSubmatch(rel)
			if m == nil {
				continue
			}
			u := mapmerge.Unit{Name: m[2], Kind: m[4], AocField: m[1] == "AocField"}
			if !seen[u] {
				seen[u] = true
				units = append(units, u)
			}
		}
	}
	return units, nil
}

// discoverLanguages returns every language any enabled layer ships a
// Bootup_<L>.pack for, in first-seen order, deduplicated.
func (o *Orchestrator) discoverLanguages(layers []string, contentDir string) ([]string, error) {
	seen := make(map[string]bool)
	var langs []string
	for _, layer := range layers {
		rels, err := o.listContentFiles(layer, contentDir)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			m := bootupPattern.FindStringSubmatch(rel)
			if m == nil {
				continue
			}
			if !seen[m[1]] {
				seen[m[1]] = true
				langs = append(langs, m[1])
			}
		}
	}
	return langs, nil
}

// discoverPackConflicts returns every content-relative path shipped by
// two or more enabled layers: a real cross-mod conflict the Pack Merger
// needs to resolve file-by-file, as opposed to a file only one mod
// ships (which pkg/stage's plain link step already handles correctly
// with no merge needed).
func (o *Orchestrator) discoverPackConflicts(layers []string, contentDir string) ([]string, error) {
	counts := make(map[string]int)
	var order []string
	for _, layer := range layers {
		rels, err := o.listContentFiles(layer, contentDir)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			if counts[rel] == 0 {
				order = append(order, rel)
			}
			counts[rel]++
		}
	}
	var conflicts []string
	for _, rel := range order {
		if counts[rel] >= 2 && isPackLike(rel) {
			conflicts = append(conflicts, rel)
		}
	}
	return conflicts, nil
}

// isPackLike restricts pack-conflict discovery to container-extension
// files; non-archive assets that happen to collide across mods are a
// plain last-writer-wins case already handled by pkg/stage's per-layer
// ordering, not the Pack Merger's concern.
func isPackLike(rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	switch ext {
	case ".pack", ".sarc", ".spack", ".ssarc", ".blarc", ".sblarc":
		return true
	default:
		return false
	}
}
