package db

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/unitd/internal/supervisor"
	"github.com/trly/unitd/internal/testutil"
	"github.com/trly/unitd/internal/unit"
)

func richDatabase(t *testing.T) *Database {
	t.Helper()

	d := testDatabase(t)

	opts := supervisor.NewOptions("/sbin/agetty", "--noclear", "tty2", "linux")
	opts.Env = []string{"TERM=linux", "LANG=C"}
	opts.Pwd = "/"
	opts.User = "root"
	opts.Group = "tty"
	opts.Stdout = "/var/log/getty.out"
	opts.Stderr = "/var/log/getty.err"
	opts.RestartDelay = 3
	opts.RestartAttempts = 5
	opts.RestartPolicy = supervisor.Always

	d.Register(&unit.Declared{
		ID:   unit.NewName("getty@tty2"),
		Type: unit.Oneshot,
		Desc: "login on tty2",
		Deps: unit.Dependencies{
			Needs:  unit.Names("procfs"),
			Uses:   unit.Names("syslog"),
			Wants:  unit.Names("sysfs", "ghost"),
			Before: unit.Names("x"),
			After:  unit.Names("syslog"),
		},
		Supervisor: opts,
	})
	require.NoError(t, d.Enable(1, unit.NewName("getty@tty2")))
	d.AddLevel()
	require.NoError(t, d.Rebuild())
	return d
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "unitd.db")
	d := richDatabase(t)

	require.NoError(t, Save(path, d, testutil.NewTestLogger(t)))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, d.Enabled, loaded.Enabled)
	assert.Equal(t, d.Levels, loaded.Levels)
	assert.Equal(t, d.Infos, loaded.Infos)
	require.Len(t, loaded.Units, 2)

	getty := loaded.Units[unit.NewName("getty@tty2")]
	require.NotNil(t, getty)
	want := d.Units[unit.NewName("getty@tty2")]
	assert.Equal(t, want.Type, getty.Type)
	assert.Equal(t, want.Desc, getty.Desc)
	assert.Equal(t, want.Deps, getty.Deps)
	assert.Equal(t, want.Supervisor, getty.Supervisor)
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unitd.db")
	logger := testutil.NewTestLogger(t)
	d := testDatabase(t)

	require.NoError(t, Save(path, d, logger))
	require.NoError(t, d.Disable(0, unit.NewName("sysfs")))
	require.NoError(t, d.Rebuild())
	require.NoError(t, Save(path, d, logger))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.False(t, loaded.IsEnabled(0, unit.NewName("sysfs")))
}

func TestSaveInterruptedKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unitd.db")
	logger := testutil.NewTestLogger(t)

	d := testDatabase(t)
	require.NoError(t, Save(path, d, logger))

	crash := errors.New("power lost")
	beforeCommit = func() error { return crash }
	t.Cleanup(func() { beforeCommit = nil })

	c := d.Clone()
	require.NoError(t, c.Enable(0, unit.NewName("syslog")))
	require.NoError(t, c.Rebuild())
	assert.ErrorIs(t, Save(path, c, logger), crash)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.False(t, loaded.IsEnabled(0, unit.NewName("syslog")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "pending file must be cleaned up")
}

func TestOpen(t *testing.T) {
	logger := testutil.NewTestLogger(t)
	fallback := func() (*Database, error) { return testDatabase(t), nil }

	t.Run("missing file is defaulted", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "unitd.db")

		d, defaulted, err := Open(path, fallback, logger)
		require.NoError(t, err)
		assert.True(t, defaulted)
		assert.Equal(t, 2, d.LevelCount())
	})

	t.Run("existing file is loaded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "unitd.db")
		require.NoError(t, Save(path, richDatabase(t), logger))

		d, defaulted, err := Open(path, fallback, logger)
		require.NoError(t, err)
		assert.False(t, defaulted)
		assert.Equal(t, 3, d.LevelCount())
	})

	t.Run("corrupt file falls back and is kept", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "unitd.db")
		require.NoError(t, os.WriteFile(path, []byte("not a database at all"), 0o644))

		d, defaulted, err := Open(path, fallback, logger)
		require.NoError(t, err)
		assert.False(t, defaulted)
		assert.Equal(t, 2, d.LevelCount())

		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("other schema version falls back", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "unitd.db")
		require.NoError(t, Save(path, richDatabase(t), logger))

		conn, err := Connect(path, false)
		require.NoError(t, err)
		_, err = conn.Exec("UPDATE schema_migrations SET version = 99")
		require.NoError(t, err)
		require.NoError(t, conn.Close())

		_, err = Load(path)
		assert.ErrorIs(t, err, ErrSchemaVersion)

		d, defaulted, err := Open(path, fallback, logger)
		require.NoError(t, err)
		assert.False(t, defaulted)
		assert.Equal(t, 2, d.LevelCount())
	})

	t.Run("default failure is returned", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "unitd.db")
		_, _, err := Open(path, func() (*Database, error) { return nil, errors.New("cycle") }, logger)
		assert.ErrorContains(t, err, "cycle")
	})
}

func TestReadDatabaseErrors(t *testing.T) {
	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock)
		want   string
	}{
		{
			name: "levels",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM levels`).WillReturnError(errors.New("disk I/O error"))
			},
			want: "reading levels",
		},
		{
			name: "enabled",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM levels`).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
				mock.ExpectQuery(`SELECT level, unit FROM enabled`).WillReturnError(errors.New("disk I/O error"))
			},
			want: "reading enabled units",
		},
		{
			name: "enabled level out of range",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM levels`).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
				mock.ExpectQuery(`SELECT level, unit FROM enabled`).
					WillReturnRows(sqlmock.NewRows([]string{"level", "unit"}).AddRow(4, "procfs"))
			},
			want: "unknown level",
		},
		{
			name: "dependency of unknown unit",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM levels`).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
				mock.ExpectQuery(`SELECT level, unit FROM enabled`).
					WillReturnRows(sqlmock.NewRows([]string{"level", "unit"}))
				mock.ExpectQuery(`SELECT level, wave, unit FROM waves`).
					WillReturnRows(sqlmock.NewRows([]string{"level", "wave", "unit"}))
				mock.ExpectQuery(`SELECT name FROM unit_infos`).
					WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("procfs"))
				mock.ExpectQuery(`SELECT unit, relation, target FROM dependencies`).
					WillReturnRows(sqlmock.NewRows([]string{"unit", "relation", "target"}).AddRow("ghost", "needs", "procfs"))
			},
			want: "unknown unit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = conn.Close() }()

			tt.expect(mock)

			_, err = readDatabase(conn)
			assert.ErrorContains(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
