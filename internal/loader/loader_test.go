package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/unitd/internal/db"
	"github.com/trly/unitd/internal/sched"
	"github.com/trly/unitd/internal/supervisor"
	"github.com/trly/unitd/internal/testutil"
	"github.com/trly/unitd/internal/unit"
)

func declared(name string) *unit.Declared {
	return &unit.Declared{ID: unit.NewName(name), Type: unit.Daemon, Supervisor: supervisor.NewOptions("/bin/" + name)}
}

func newLoader(t *testing.T) (*Loader, *sched.Scheduler) {
	t.Helper()

	procfs := testutil.NewNullUnit("procfs", unit.Dependencies{})
	sysfs := testutil.NewNullUnit("sysfs", unit.Dependencies{})

	d, err := db.New(testutil.Infos(procfs, sysfs),
		map[unit.Name]*unit.Declared{unit.NewName("crond"): declared("crond")},
		[]unit.NameSet{
			unit.NewNameSet(unit.Names("procfs", "sysfs")...),
			unit.NewNameSet(unit.NewName("crond")),
		})
	require.NoError(t, err)

	s := sched.New()
	t.Cleanup(s.Close)

	l := New(s, d, Options{
		Path:      filepath.Join(t.TempDir(), "unitd.db"),
		Baked:     []unit.Unit{procfs, sysfs},
		Launcher:  &testutil.Launcher{},
		Defaulted: true,
		Logger:    testutil.NewTestLogger(t),
	})
	return l, s
}

func TestForeignThreadPanics(t *testing.T) {
	l, _ := newLoader(t)

	assert.PanicsWithValue(t, ErrForeignThread, func() { l.Database() })
	assert.PanicsWithValue(t, ErrForeignThread, func() { l.MarkStarted(0, unit.NewName("procfs")) })
}

func TestWavesAndStarted(t *testing.T) {
	l, _ := newLoader(t)

	require.NoError(t, l.Do(context.Background(), func(l *Loader) {
		require.Equal(t, 2, l.LevelCount())

		waves, err := l.Waves(0)
		require.NoError(t, err)
		require.Len(t, waves, 1)
		assert.Len(t, waves[0], 2)

		_, err = l.Waves(7)
		assert.ErrorIs(t, err, db.ErrUnknownLevel)

		crond, ok := l.Unit(unit.NewName("crond"))
		require.True(t, ok)
		assert.IsType(t, &unit.Declared{}, crond)

		l.MarkStarted(1, unit.NewName("crond"))
		assert.True(t, l.IsStarted(1, unit.NewName("crond")))
		started := l.Started(1)
		started.Remove(unit.NewName("crond"))
		assert.True(t, l.IsStarted(1, unit.NewName("crond")), "Started returns a copy")

		l.MarkStopped(1, unit.NewName("crond"))
		assert.False(t, l.IsStarted(1, unit.NewName("crond")))
		assert.Empty(t, l.Started(9))
	}))
}

func TestReloadKeepsStartedHandles(t *testing.T) {
	l, _ := newLoader(t)
	ctx := context.Background()

	require.NoError(t, l.Do(ctx, func(l *Loader) {
		l.MarkStarted(1, unit.NewName("crond"))
		before, _ := l.Unit(unit.NewName("crond"))

		next := l.Database().Clone()
		next.Register(declared("atd"))
		next.Register(declared("crond"))
		next.AddLevel()
		require.NoError(t, next.Rebuild())

		l.Reload(next)

		after, _ := l.Unit(unit.NewName("crond"))
		assert.Same(t, before, after)
		_, ok := l.Unit(unit.NewName("atd"))
		assert.True(t, ok)
		assert.Equal(t, 3, l.LevelCount())
		assert.True(t, l.IsStarted(1, unit.NewName("crond")))
		assert.Empty(t, l.Started(2))
	}))
}

func TestReloadKeepsDroppedRunningUnits(t *testing.T) {
	l, _ := newLoader(t)

	require.NoError(t, l.Do(context.Background(), func(l *Loader) {
		crond := unit.NewName("crond")
		l.MarkStarted(1, crond)
		before, _ := l.Unit(crond)

		current := l.Database()
		next, err := db.New(
			map[unit.Name]unit.Info{
				unit.NewName("procfs"): current.Infos[unit.NewName("procfs")],
				unit.NewName("sysfs"):  current.Infos[unit.NewName("sysfs")],
			},
			nil,
			[]unit.NameSet{unit.NewNameSet(unit.Names("procfs", "sysfs")...), make(unit.NameSet)})
		require.NoError(t, err)

		l.Reload(next)

		after, ok := l.Unit(crond)
		require.True(t, ok, "running unit keeps its handle")
		assert.Same(t, before, after)
		assert.True(t, l.IsStarted(1, crond))
	}))
}

func TestStartedAt(t *testing.T) {
	l, _ := newLoader(t)

	require.NoError(t, l.Do(context.Background(), func(l *Loader) {
		_, ok := l.StartedAt(unit.NewName("procfs"))
		assert.False(t, ok)

		l.MarkStarted(0, unit.NewName("procfs"))
		level, ok := l.StartedAt(unit.NewName("procfs"))
		assert.True(t, ok)
		assert.Equal(t, 0, level)
	}))
}

func TestReloadRebindsStoppedUnits(t *testing.T) {
	l, _ := newLoader(t)

	require.NoError(t, l.Do(context.Background(), func(l *Loader) {
		before, _ := l.Unit(unit.NewName("crond"))
		l.Reload(l.Database().Clone())
		after, _ := l.Unit(unit.NewName("crond"))
		assert.NotSame(t, before, after)
	}))
}

func TestPersistClearsDefaulted(t *testing.T) {
	l, _ := newLoader(t)

	require.NoError(t, l.Do(context.Background(), func(l *Loader) {
		assert.True(t, l.Defaulted())
		require.NoError(t, l.Persist())
		assert.False(t, l.Defaulted())
	}))

	loaded, err := db.Load(l.Path())
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.LevelCount())
}
