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

//go:build windows

package stage

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/windows"
)

// NTFS/ReFS directory junctions are reparse points the shell and the
// game loader both resolve transparently, unlike symlinks which on
// Windows require either Developer Mode or elevation to create. BCML
// itself uses the platform junction() syscall for this reason
// (original_source/src/manager.rs: "junction::create" on windows); Go
// has no such helper in go-winio's public surface, so createLink issues
// the same FSCTL_SET_REPARSE_POINT sequence directly against
// golang.org/x/sys/windows, the syscall layer go-winio itself is built
// on.
const (
	reparseTagMountPoint  = 0xA0000003
	fsctlSetReparsePoint  = 0x000900A4
	fsctlGetReparsePoint  = 0x000900A8
	reparseGenericHeader  = 8
	reparseMountPointHdr  = 8
	maximumReparseDataLen = 16 * 1024
)

// createLink creates output as an NTFS junction pointing at target
// (spec §4.8 "External linking": "windows: junction").
func createLink(target, output string) error {
	if err := os.MkdirAll(output, 0o750); err != nil {
		return err
	}

	h, err := openReparseHandle(output)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h) //nolint:errcheck

	buf := buildMountPointReparseBuffer(target)
	var bytesReturned uint32
	return windows.DeviceIoControl(h, fsctlSetReparsePoint, &buf[0], uint32(len(buf)), nil, 0, &bytesReturned, nil)
}

// isCorrectLink reports whether output is already a junction resolving
// to target.
func isCorrectLink(output, target string) (bool, error) {
	attrs, err := windows.GetFileAttributes(windows.StringToUTF16Ptr(output))
	if err != nil {
		if err == windows.ERROR_FILE_NOT_FOUND || err == windows.ERROR_PATH_NOT_FOUND { //nolint:errorlint
			return false, nil
		}
		return false, err
	}
	if attrs&windows.FILE_ATTRIBUTE_REPARSE_POINT == 0 {
		return false, nil
	}

	h, err := openReparseHandle(output)
	if err != nil {
		return false, err
	}
	defer windows.CloseHandle(h) //nolint:errcheck

	buf := make([]byte, maximumReparseDataLen)
	var bytesReturned uint32
	if err := windows.DeviceIoControl(h, fsctlGetReparsePoint, nil, 0, &buf[0], uint32(len(buf)), &bytesReturned, nil); err != nil {
		return false, err
	}
	got, ok := parseMountPointTarget(buf[:bytesReturned])
	if !ok {
		return false, nil
	}
	return got == target, nil
}

func openReparseHandle(path string) (windows.Handle, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	return windows.CreateFile(
		p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT,
		0,
	)
}

// buildMountPointReparseBuffer encodes target into a
// REPARSE_DATA_BUFFER of type IO_REPARSE_TAG_MOUNT_POINT, the same
// layout the NT kernel expects for a directory junction.
func buildMountPointReparseBuffer(target string) []byte {
	substitute := `\??\` + target
	substUTF16 := windows.StringToUTF16(substitute)
	printUTF16 := windows.StringToUTF16(target)

	substBytes := utf16ToBytes(substUTF16[:len(substUTF16)-1])
	printBytes := utf16ToBytes(printUTF16[:len(printUTF16)-1])

	pathBufLen := len(substBytes) + 2 + len(printBytes) + 2
	dataLen := reparseMountPointHdr + pathBufLen
	total := reparseGenericHeader + dataLen

	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:4], reparseTagMountPoint)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(dataLen))

	off := reparseGenericHeader
	binary.LittleEndian.PutUint16(buf[off:off+2], 0)                          // SubstituteNameOffset
	binary.LittleEndian.PutUint16(buf[off+2:off+4], uint16(len(substBytes)))  // SubstituteNameLength
	binary.LittleEndian.PutUint16(buf[off+4:off+6], uint16(len(substBytes)+2)) // PrintNameOffset
	binary.LittleEndian.PutUint16(buf[off+6:off+8], uint16(len(printBytes)))  // PrintNameLength

	pathBuf := buf[off+reparseMountPointHdr:]
	copy(pathBuf, substBytes)
	copy(pathBuf[len(substBytes)+2:], printBytes)
	return buf
}

func utf16ToBytes(u []uint16) []byte {
	b := make([]byte, len(u)*2)
	for i, c := range u {
		binary.LittleEndian.PutUint16(b[i*2:i*2+2], c)
	}
	return b
}

func parseMountPointTarget(buf []byte) (string, bool) {
	if len(buf) < reparseGenericHeader+reparseMountPointHdr {
		return "", false
	}
	tag := binary.LittleEndian.Uint32(buf[0:4])
	if tag != reparseTagMountPoint {
		return "", false
	}
	off := reparseGenericHeader
	substOff := binary.LittleEndian.Uint16(buf[off : off+2])
	substLen := binary.LittleEndian.Uint16(buf[off+2 : off+4])
	pathBuf := buf[off+reparseMountPointHdr:]
	if int(substOff+substLen) > len(pathBuf) {
		return "", false
	}
	raw := pathBuf[substOff : substOff+substLen]
	u := make([]uint16, len(raw)/2)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
	}
	s := windows.UTF16ToString(u)
	s = trimPrefix(s, `\??\`)
	return s, true
}

func trimPrefix(s, prefix string) string {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}
