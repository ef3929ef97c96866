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

package stage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/modforge/mergecore/pkg/config"
	"github.com/modforge/mergecore/pkg/merrors"
)

// External publishes the Merged Tree at snap.OutputDir() (spec §4.8
// "External linking"): by symbolic link/junction when the snapshot
// prefers links, by recursive copy of content/dlc otherwise (plus
// patches and rules.txt where the variant requires a rules file).
// modCount is the number of enabled mods, used by the
// post-condition check below.
func (o *Orchestrator) External(ctx context.Context, snap config.Snapshot, modCount int) error {
	output := snap.OutputDir()
	merged := snap.MergedTreeDir()

	if output == "" {
		return merrors.New(merrors.KindConfig, "", errNoOutputDir)
	}

	if snap.PreferLinks() {
		if err := o.ensureLink(output, merged); err != nil {
			return err
		}
	} else {
		if err := o.ensureCopy(ctx, snap, output, merged); err != nil {
			return err
		}
	}

	return o.checkDeployed(output, modCount)
}

var errNoOutputDir = configErr("external output directory is not configured")

type configErr string

func (e configErr) Error() string { return string(e) }

// ensureLink implements the link branch of spec §4.8 "External
// linking": remove any real directory at output, create a
// symlink/junction to merged if one doesn't already correctly exist,
// and retry with a copy if link creation produced an empty directory
// (a known failure mode on filesystems that silently materialize an
// empty mountpoint instead of erroring).
func (o *Orchestrator) ensureLink(output, merged string) error {
	isLink, err := isCorrectLink(output, merged)
	if err != nil {
		return merrors.New(merrors.KindIO, output, err)
	}
	if isLink {
		return nil
	}

	if info, err := os.Lstat(output); err == nil && info.IsDir() && info.Mode()&os.ModeSymlink == 0 {
		if err := os.RemoveAll(output); err != nil {
			return merrors.New(merrors.KindIO, output, err)
		}
	}

	if err := createLink(merged, output); err != nil {
		log.Warn().Err(err).Str("output", output).Msg("link creation failed, falling back to copy")
		return o.copyFallback(output, merged)
	}

	empty, err := dirIsEmpty(output)
	if err != nil {
		return merrors.New(merrors.KindIO, output, err)
	}
	if empty {
		log.Warn().Str("output", output).Msg("link appears empty, retrying with copy")
		return o.copyFallback(output, merged)
	}
	return nil
}

// copyFallback degrades a failed or empty link to a full content/dlc
// copy, per spec §7: "Symbolic-link failures degrade to copy on
// retry."
func (o *Orchestrator) copyFallback(output, merged string) error {
	_ = os.RemoveAll(output)
	if err := o.fs.MkdirAll(output, o.dirPerm); err != nil {
		return merrors.New(merrors.KindIO, output, err)
	}
	ctx := context.Background()
	for _, sub := range []string{"content", "dlc", "patches"} {
		if err := o.copyTree(ctx, filepath.Join(merged, sub), filepath.Join(output, sub)); err != nil {
			return merrors.New(merrors.KindIO, filepath.Join(output, sub), err)
		}
	}
	return o.copyRulesFile(merged, output)
}

// ensureCopy implements the copy branch of spec §4.8 "External
// linking": remove any existing link, ensure output exists, then
// mirror content/dlc (plus patches and rules.txt where the platform
// needs them) via recursive copy, preserving any sibling mods another
// tool installed directly into output.
func (o *Orchestrator) ensureCopy(ctx context.Context, snap config.Snapshot, output, merged string) error {
	if info, err := os.Lstat(output); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(output); err != nil {
			return merrors.New(merrors.KindIO, output, err)
		}
	}
	if err := o.fs.MkdirAll(output, o.dirPerm); err != nil {
		return merrors.New(merrors.KindIO, output, err)
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { return o.copyTree(ctx, filepath.Join(merged, "content"), filepath.Join(output, "content")) })
	g.Go(func() error { return o.copyTree(ctx, filepath.Join(merged, "dlc"), filepath.Join(output, "dlc")) })
	if err := g.Wait(); err != nil {
		return merrors.New(merrors.KindIO, output, err)
	}

	if snap.Variant().RequiresRulesFile() {
		if err := o.copyTree(ctx, filepath.Join(merged, "patches"), filepath.Join(output, "patches")); err != nil {
			return merrors.New(merrors.KindIO, output, err)
		}
		if err := o.copyRulesFile(merged, output); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) copyRulesFile(merged, output string) error {
	src := filepath.Join(merged, "rules.txt")
	exists, err := afero.Exists(o.fs, src)
	if err != nil {
		return merrors.New(merrors.KindIO, src, err)
	}
	if !exists {
		return nil
	}
	if err := o.copyFile(src, filepath.Join(output, "rules.txt")); err != nil {
		return merrors.New(merrors.KindIO, output, err)
	}
	return nil
}

// checkDeployed surfaces a *Deployment* error if the external output
// ends up empty while at least two mods are installed (spec §4.8
// "Post-condition check"; §8 scenario 6).
func (o *Orchestrator) checkDeployed(output string, modCount int) error {
	if modCount < 2 {
		return nil
	}
	empty, err := dirIsEmpty(output)
	if err != nil {
		return merrors.New(merrors.KindIO, output, err)
	}
	if empty {
		return merrors.Deployment("external output is empty with " + itoa(modCount) + " mods installed")
	}
	return nil
}

func dirIsEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	return len(entries) == 0, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
