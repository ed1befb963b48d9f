package system

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Well-known mount tables.
const (
	ProcMounts      = "/proc/mounts"
	ProcFilesystems = "/proc/filesystems"
	Fstab           = "/etc/fstab"
)

// MountEntry is one line of an fstab-format table.
type MountEntry struct {
	Spec    string
	File    string
	VFSType string
	Options []string
	Freq    int
	Passno  int
}

var mountFlags = map[string]uintptr{
	"ro":          unix.MS_RDONLY,
	"nosuid":      unix.MS_NOSUID,
	"nodev":       unix.MS_NODEV,
	"noexec":      unix.MS_NOEXEC,
	"sync":        unix.MS_SYNCHRONOUS,
	"remount":     unix.MS_REMOUNT,
	"noatime":     unix.MS_NOATIME,
	"nodiratime":  unix.MS_NODIRATIME,
	"relatime":    unix.MS_RELATIME,
	"strictatime": unix.MS_STRICTATIME,
}

var ignoredOptions = []string{"defaults", "rw", "auto", "noauto", "user", "nouser", "nofail"}

// MountOptions converts the entry into mount(2) arguments. Options that are
// not flags are passed through as filesystem data.
func (e MountEntry) MountOptions() MountOptions {
	opts := MountOptions{FSType: e.VFSType, Source: e.Spec}
	var data []string
	for _, o := range e.Options {
		if f, ok := mountFlags[o]; ok {
			opts.Flags |= f
			continue
		}
		if slices.Contains(ignoredOptions, o) {
			continue
		}
		data = append(data, o)
	}
	opts.Data = strings.Join(data, ",")
	return opts
}

// ParseMounts reads an fstab-format table. Blank lines and comments are
// skipped; the dump and pass fields are optional.
func ParseMounts(r io.Reader) ([]MountEntry, error) {
	var entries []MountEntry
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) < 4 {
			return nil, fmt.Errorf("line %d: expected at least 4 fields, got %d", line, len(fields))
		}

		e := MountEntry{
			Spec:    fields[0],
			File:    fields[1],
			VFSType: fields[2],
			Options: strings.Split(fields[3], ","),
		}

		var err error
		if len(fields) > 4 {
			if e.Freq, err = strconv.Atoi(fields[4]); err != nil {
				return nil, fmt.Errorf("line %d: bad dump field: %w", line, err)
			}
		}
		if len(fields) > 5 {
			if e.Passno, err = strconv.Atoi(fields[5]); err != nil {
				return nil, fmt.Errorf("line %d: bad pass field: %w", line, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// ReadMounts parses the table at path.
func ReadMounts(path string) ([]MountEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ParseMounts(f)
}

// Lookup returns the entry mounted at file.
func Lookup(entries []MountEntry, file string) (MountEntry, bool) {
	for _, e := range entries {
		if e.File == file {
			return e, true
		}
	}
	return MountEntry{}, false
}

// ParseFilesystems returns the filesystem types listed in /proc/filesystems
// format.
func ParseFilesystems(r io.Reader) (map[string]bool, error) {
	types := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		types[fields[len(fields)-1]] = true
	}
	return types, scanner.Err()
}
