// Package mount models the mount-point table the scan engine consults for
// filesystem-crossing policy (spec.md §4.4, §6.2): one Point per mounted
// filesystem, with predicates for system/network/duplicate/snap mounts.
package mount

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Point is one entry from /proc/mounts (or /etc/mtab as a fallback).
type Point struct {
	Device    string
	Path      string
	FSType    string
	Options   []string
	Duplicate bool
}

// systemMountPrefixes are the well-known non-negotiable system mount paths;
// a mount below one of these is never eligible for filesystem crossing.
var systemMountPrefixes = []string{
	"/dev", "/proc", "/sys", "/run",
}

// IsBtrfs reports a btrfs filesystem.
func (p *Point) IsBtrfs() bool { return strings.EqualFold(p.FSType, "btrfs") }

// IsNtfs reports an NTFS filesystem (any of the common driver names).
func (p *Point) IsNtfs() bool { return strings.HasPrefix(strings.ToLower(p.FSType), "ntfs") }

// IsAutofs reports an automounter-managed filesystem.
func (p *Point) IsAutofs() bool { return strings.EqualFold(p.FSType, "autofs") }

// IsNetworkMount reports NFS, CIFS/SMB, or SSHFS.
func (p *Point) IsNetworkMount() bool {
	switch strings.ToLower(p.FSType) {
	case "nfs", "nfs4", "cifs", "smb", "smbfs", "sshfs":
		return true
	}
	return false
}

// IsSnapPackage reports a squashfs mounted below /snap.
func (p *Point) IsSnapPackage() bool {
	return strings.HasPrefix(p.Path, "/snap") && strings.EqualFold(p.FSType, "squashfs")
}

// IsSystemMount reports a known system mount path, or a device name that
// does not start with "/" (pseudo-filesystems like cgroup, tmpfs, sysfs).
func (p *Point) IsSystemMount() bool {
	for _, prefix := range systemMountPrefixes {
		if p.Path == prefix || strings.HasPrefix(p.Path, prefix+"/") {
			return true
		}
	}
	return !strings.HasPrefix(p.Device, "/")
}

// IsDuplicate reports a bind mount or a device mounted at more than one path.
func (p *Point) IsDuplicate() bool { return p.Duplicate }

// IsNormalMountPoint reports whether this mount is eligible for scan
// crossing: not system, not duplicate, not autofs, not a snap
// package (§4.4's filesystem-crossing policy).
func (p *Point) IsNormalMountPoint() bool {
	return !p.IsSystemMount() && !p.IsDuplicate() && !p.IsAutofs() && !p.IsSnapPackage()
}

// HasOption reports whether opt is present verbatim in the mount options.
func (p *Point) HasOption(opt string) bool {
	for _, o := range p.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Table is the set of mount points known to the running system, keyed by
// path for exact lookups and kept in longest-path-first order for prefix
// search.
type Table struct {
	points    map[string]*Point
	byLenDesc []*Point
}

// Load reads /proc/mounts, falling back to /etc/mtab, per MountPoints'
// populate().
func Load() (*Table, error) {
	t, err := load("/proc/mounts")
	if err != nil {
		t, err = load("/etc/mtab")
	}
	if err != nil {
		return nil, errors.Wrap(err, "mount: no mount table could be read")
	}
	return t, nil
}

func load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t := &Table{points: make(map[string]*Point)}
	deviceCount := map[string]int{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		p := &Point{
			Device:  unescapeMountField(fields[0]),
			Path:    unescapeMountField(fields[1]),
			FSType:  fields[2],
			Options: strings.Split(fields[3], ","),
		}
		t.points[p.Path] = p
		deviceCount[p.Device]++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, p := range t.points {
		if deviceCount[p.Device] > 1 {
			p.Duplicate = true
		}
		t.byLenDesc = append(t.byLenDesc, p)
	}
	sortByPathLenDesc(t.byLenDesc)
	return t, nil
}

func sortByPathLenDesc(pts []*Point) {
	for i := 1; i < len(pts); i++ {
		for j := i; j > 0 && len(pts[j-1].Path) < len(pts[j].Path); j-- {
			pts[j-1], pts[j] = pts[j], pts[j-1]
		}
	}
}

// unescapeMountField reverses the octal escaping /proc/mounts uses for
// spaces, tabs, and backslashes in device/path fields ("\040" for space).
func unescapeMountField(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// FindByPath returns the mount point registered at exactly path, if any.
func (t *Table) FindByPath(path string) (*Point, bool) {
	p, ok := t.points[path]
	return p, ok
}

// FindNearestMountPoint walks up from path to find the mount point that
// owns it (path itself might be that mount point).
func (t *Table) FindNearestMountPoint(path string) *Point {
	for _, p := range t.byLenDesc {
		if path == p.Path || strings.HasPrefix(path, strings.TrimSuffix(p.Path, "/")+"/") {
			return p
		}
	}
	return nil
}

// DeviceNumber returns the st_dev of path, used by the scan engine to detect
// a filesystem boundary by comparing a child's device against its parent's.
func DeviceNumber(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return 0, errors.Wrapf(err, "mount: stat %s", path)
	}
	return uint64(st.Dev), nil
}
