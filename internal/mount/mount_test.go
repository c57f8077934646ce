package mount

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMounts(t *testing.T, content string) *Table {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mounts")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	tbl, err := load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return tbl
}

func TestLoadParsesFields(t *testing.T) {
	tbl := writeMounts(t, `
/dev/sda1 / ext4 rw,relatime 0 0
/dev/sda2 /home ext4 rw,relatime 0 0
tmpfs /dev tmpfs rw,nosuid 0 0
`)
	root, ok := tbl.FindByPath("/")
	if !ok {
		t.Fatalf("expected / to be found")
	}
	if root.FSType != "ext4" {
		t.Errorf("FSType = %q, want ext4", root.FSType)
	}
	if !root.HasOption("rw") {
		t.Errorf("expected rw option")
	}
}

func TestIsSystemMount(t *testing.T) {
	tbl := writeMounts(t, `
/dev/sda1 / ext4 rw 0 0
tmpfs /dev/shm tmpfs rw 0 0
cgroup /sys/fs/cgroup cgroup rw 0 0
/dev/sda2 /home ext4 rw 0 0
`)
	cases := map[string]bool{"/": false, "/dev/shm": true, "/sys/fs/cgroup": true, "/home": false}
	for path, want := range cases {
		p, ok := tbl.FindByPath(path)
		if !ok {
			t.Fatalf("path %s not found", path)
		}
		if got := p.IsSystemMount(); got != want {
			t.Errorf("IsSystemMount(%s) = %v, want %v", path, got, want)
		}
	}
}

func TestIsDuplicateDetectsRepeatedDevice(t *testing.T) {
	tbl := writeMounts(t, `
/dev/sda1 / ext4 rw 0 0
/dev/sda1 /mnt/backup ext4 rw 0 0
/dev/sda2 /home ext4 rw 0 0
`)
	root, _ := tbl.FindByPath("/")
	home, _ := tbl.FindByPath("/home")
	if !root.IsDuplicate() {
		t.Errorf("expected / to be flagged duplicate (device mounted twice)")
	}
	if home.IsDuplicate() {
		t.Errorf("expected /home to not be flagged duplicate")
	}
}

func TestIsSnapPackage(t *testing.T) {
	tbl := writeMounts(t, `
core20 /snap/core20/1234 squashfs ro 0 0
/dev/sda1 / ext4 rw 0 0
`)
	snap, _ := tbl.FindByPath("/snap/core20/1234")
	if !snap.IsSnapPackage() {
		t.Errorf("expected snap mount to be detected")
	}
}

func TestFindNearestMountPoint(t *testing.T) {
	tbl := writeMounts(t, `
/dev/sda1 / ext4 rw 0 0
/dev/sda2 /home ext4 rw 0 0
`)
	p := tbl.FindNearestMountPoint("/home/alice/docs")
	if p == nil || p.Path != "/home" {
		t.Fatalf("FindNearestMountPoint = %v, want /home", p)
	}
	p = tbl.FindNearestMountPoint("/usr/local/bin")
	if p == nil || p.Path != "/" {
		t.Fatalf("FindNearestMountPoint = %v, want /", p)
	}
}

func TestUnescapeMountField(t *testing.T) {
	if got := unescapeMountField(`/mnt/my\040drive`); got != "/mnt/my drive" {
		t.Errorf("unescapeMountField = %q, want %q", got, "/mnt/my drive")
	}
}
