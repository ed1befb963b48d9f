package units

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/trly/unitd/internal/system"
	"github.com/trly/unitd/internal/testutil"
	"github.com/trly/unitd/internal/unit"
)

type fakeHost struct {
	files      map[string]string
	mounted    map[string]bool
	filesystem map[string]bool
	fstab      map[string]system.MountEntry
	mountErr   error

	mounts   map[string]system.MountOptions
	links    map[string]string
	hostname string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		files:      map[string]string{},
		mounted:    map[string]bool{},
		filesystem: map[string]bool{"proc": true, "sysfs": true, "tmpfs": true, "devtmpfs": true, "devpts": true},
		fstab:      map[string]system.MountEntry{},
		mounts:     map[string]system.MountOptions{},
		links:      map[string]string{},
	}
}

func (h *fakeHost) Exists(path string) bool {
	_, ok := h.files[path]
	return ok || h.mounted[path]
}

func (h *fakeHost) Mounted(path string) (bool, error)     { return h.mounted[path], nil }
func (h *fakeHost) Available(fstype string) (bool, error) { return h.filesystem[fstype], nil }

func (h *fakeHost) Fstab(path string) (system.MountEntry, bool, error) {
	e, ok := h.fstab[path]
	return e, ok, nil
}

func (h *fakeHost) Mount(path string, opts system.MountOptions) error {
	if h.mountErr != nil {
		return h.mountErr
	}
	h.mounts[path] = opts
	h.mounted[path] = true
	return nil
}

func (h *fakeHost) MkdirAll(path string, _ fs.FileMode) error {
	h.files[path] = ""
	return nil
}

func (h *fakeHost) Symlink(target, link string) error {
	h.links[link] = target
	return nil
}

func (h *fakeHost) ReadFile(path string) ([]byte, error) {
	s, ok := h.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(s), nil
}

func (h *fakeHost) Sethostname(name string) error {
	h.hostname = name
	return nil
}

func bakedByName(t *testing.T, h Host) map[string]unit.Unit {
	t.Helper()
	m := make(map[string]unit.Unit)
	for _, u := range Baked(h, &testutil.Launcher{}, testutil.NewTestLogger(t)) {
		m[u.Name().String()] = u
	}
	return m
}

func TestProcFSSkipsWhenMounted(t *testing.T) {
	h := newFakeHost()
	h.files[system.ProcMounts] = ""
	u := bakedByName(t, h)["procfs"]

	ok, err := u.Prepare(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcFSMounts(t *testing.T) {
	h := newFakeHost()
	u := bakedByName(t, h)["procfs"]

	ok, err := u.Prepare(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, u.Start(context.Background()))

	assert.Equal(t, system.MountOptions{FSType: "proc", Source: "none", Flags: pseudoFlags}, h.mounts["/proc"])
}

func TestMountPrefersFstab(t *testing.T) {
	h := newFakeHost()
	h.files["/run"] = ""
	h.fstab["/run"] = system.MountEntry{Spec: "tmpfs", File: "/run", VFSType: "tmpfs", Options: []string{"nosuid", "size=5%"}}

	require.NoError(t, bakedByName(t, h)["run"].Start(context.Background()))

	assert.Equal(t, system.MountOptions{FSType: "tmpfs", Source: "tmpfs", Flags: unix.MS_NOSUID, Data: "size=5%"}, h.mounts["/run"])
	assert.True(t, h.Exists("/run/lock"))
}

func TestRunRequiresDirectory(t *testing.T) {
	h := newFakeHost()
	err := bakedByName(t, h)["run"].Start(context.Background())
	require.Error(t, err)
	assert.False(t, unit.IsRecoverable(err))
}

func TestSysFSMountsKernelFilesystems(t *testing.T) {
	h := newFakeHost()
	h.files["/sys/kernel/security"] = ""
	h.files["/sys/fs/pstore"] = ""
	h.filesystem["securityfs"] = true

	require.NoError(t, bakedByName(t, h)["sysfs"].Start(context.Background()))

	assert.Contains(t, h.mounts, "/sys")
	assert.Contains(t, h.mounts, "/sys/kernel/security")
	assert.NotContains(t, h.mounts, "/sys/fs/pstore")
}

func TestSysFSUnsupported(t *testing.T) {
	h := newFakeHost()
	delete(h.filesystem, "sysfs")

	err := bakedByName(t, h)["sysfs"].Start(context.Background())
	require.Error(t, err)
	assert.False(t, unit.IsRecoverable(err))
}

func TestDevFS(t *testing.T) {
	t.Run("mounts devtmpfs and links fds", func(t *testing.T) {
		h := newFakeHost()
		require.NoError(t, bakedByName(t, h)["devfs"].Start(context.Background()))

		assert.Equal(t, "devtmpfs", h.mounts["/dev"].FSType)
		assert.Equal(t, "/proc/self/fd/0", h.links["/dev/stdin"])
	})

	t.Run("remounts", func(t *testing.T) {
		h := newFakeHost()
		h.mounted["/dev"] = true
		require.NoError(t, bakedByName(t, h)["devfs"].Start(context.Background()))

		assert.NotZero(t, h.mounts["/dev"].Flags&unix.MS_REMOUNT)
	})

	t.Run("falls back to tmpfs", func(t *testing.T) {
		h := newFakeHost()
		delete(h.filesystem, "devtmpfs")
		require.NoError(t, bakedByName(t, h)["devfs"].Start(context.Background()))

		assert.Equal(t, "tmpfs", h.mounts["/dev"].FSType)
	})

	t.Run("no filesystem is recoverable", func(t *testing.T) {
		h := newFakeHost()
		delete(h.filesystem, "devtmpfs")
		delete(h.filesystem, "tmpfs")
		err := bakedByName(t, h)["devfs"].Start(context.Background())
		require.Error(t, err)
		assert.True(t, unit.IsRecoverable(err))
	})

	t.Run("mount failure is unrecoverable", func(t *testing.T) {
		h := newFakeHost()
		h.mountErr = errors.New("EPERM")
		err := bakedByName(t, h)["devfs"].Start(context.Background())
		require.Error(t, err)
		assert.False(t, unit.IsRecoverable(err))
	})
}

func TestDevPts(t *testing.T) {
	h := newFakeHost()
	require.NoError(t, bakedByName(t, h)["devpts"].Start(context.Background()))

	assert.Equal(t, "gid=5,mode=0620", h.mounts["/dev/pts"].Data)
	assert.Contains(t, h.mounts, "/dev/shm")
	assert.NotContains(t, h.mounts, "/dev/mqueue")
}

func TestHostname(t *testing.T) {
	h := newFakeHost()
	u := bakedByName(t, h)["hostname"]

	require.NoError(t, u.Start(context.Background()))
	assert.Equal(t, DefaultHostname, h.hostname)

	h.files["/etc/hostname"] = "  box\n"
	require.NoError(t, u.Start(context.Background()))
	assert.Equal(t, "box", h.hostname)
}

func TestGetty(t *testing.T) {
	l := &testutil.Launcher{}
	g := Getty("tty2", l)

	assert.Equal(t, "getty@tty2", g.Name().String())
	require.NoError(t, g.Start(context.Background()))
	require.Len(t, l.Launched, 1)
	assert.Equal(t, "getty", l.Launched[0])

	opts := g.Options()
	assert.Equal(t, []string{"38400", "tty2"}, opts.Args)
	assert.Equal(t, uint64(2), opts.RestartDelay)
}

func TestDefaultDatabase(t *testing.T) {
	baked := Baked(newFakeHost(), &testutil.Launcher{}, testutil.NewTestLogger(t))
	d, err := DefaultDatabase(baked)
	require.NoError(t, err)
	require.Equal(t, 2, d.LevelCount())

	first, err := d.Level(0)
	require.NoError(t, err)
	assert.Equal(t, [][]unit.Name{
		unit.Names("devfs", "hostname", "procfs"),
		unit.Names("devpts", "run", "sysfs"),
	}, [][]unit.Name(first))

	gettys, err := d.Level(1)
	require.NoError(t, err)
	assert.Equal(t, [][]unit.Name{unit.Names("getty@tty1")}, [][]unit.Name(gettys))
}
