package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/trly/unitd/internal/log"
	"github.com/trly/unitd/internal/supervisor"
	"github.com/trly/unitd/internal/unit"
)

// Relation names used in the dependencies table.
const (
	relNeeds  = "needs"
	relUses   = "uses"
	relWants  = "wants"
	relBefore = "before"
	relAfter  = "after"
)

// beforeCommit runs after the new file is complete and before it replaces the
// old one. Tests use it to simulate a crash.
var beforeCommit func() error

// Save writes d to path. Readers see either the previous file or the new one,
// never a partial write.
func Save(path string, d *Database, logger log.Logger) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("creating pending database file: %w", err)
	}
	defer func() { _ = pf.Cleanup() }()

	if err := Up(pf.Name(), logger); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	conn, err := Connect(pf.Name(), false)
	if err != nil {
		return fmt.Errorf("opening pending database: %w", err)
	}
	if err := writeDatabase(conn, d); err != nil {
		_ = conn.Close()
		return fmt.Errorf("writing database: %w", err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("closing pending database: %w", err)
	}

	if beforeCommit != nil {
		if err := beforeCommit(); err != nil {
			return err
		}
	}

	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replacing database: %w", err)
	}
	logger.Debug("Saved database", "path", path, "levels", d.LevelCount())
	return nil
}

// Load reads the database at path.
func Load(path string) (*Database, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	conn, err := Connect(path, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	if err := checkVersion(conn); err != nil {
		return nil, err
	}
	return readDatabase(conn)
}

// Open loads the database at path, falling back to the one built by def.
// defaulted is true only when no file existed; a file that cannot be read is
// left in place and reported as a warning.
func Open(path string, def func() (*Database, error), logger log.Logger) (d *Database, defaulted bool, err error) {
	d, err = Load(path)
	if err == nil {
		return d, false, nil
	}

	missing := errors.Is(err, fs.ErrNotExist)
	if !missing {
		logger.Warn("Failed to load database, using defaults", "path", path, "error", err)
	}

	d, err = def()
	if err != nil {
		return nil, false, fmt.Errorf("building default database: %w", err)
	}
	return d, missing, nil
}

func checkVersion(conn *sql.DB) error {
	var version int
	var dirty bool
	if err := conn.QueryRow("SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if dirty || version != SchemaVersion {
		return fmt.Errorf("%w: %d (dirty=%t), want %d", ErrSchemaVersion, version, dirty, SchemaVersion)
	}
	return nil
}

func writeDatabase(conn *sql.DB, d *Database) (err error) {
	tx, err := conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, enabled := range d.Enabled {
		if _, err := tx.Exec("INSERT INTO levels (level) VALUES (?)", i); err != nil {
			return fmt.Errorf("inserting level %d: %w", i, err)
		}
		for _, n := range enabled.Sorted() {
			if _, err := tx.Exec("INSERT INTO enabled (level, unit) VALUES (?, ?)", i, n.String()); err != nil {
				return fmt.Errorf("inserting enabled unit %s: %w", n, err)
			}
		}
	}

	for i, level := range d.Levels {
		for w, wave := range level {
			for _, n := range wave {
				if _, err := tx.Exec("INSERT INTO waves (level, wave, unit) VALUES (?, ?, ?)", i, w, n.String()); err != nil {
					return fmt.Errorf("inserting wave member %s: %w", n, err)
				}
			}
		}
	}

	names := make([]unit.Name, 0, len(d.Infos))
	for n := range d.Infos {
		names = append(names, n)
	}
	unit.SortNames(names)

	for _, n := range names {
		if _, err := tx.Exec("INSERT INTO unit_infos (name) VALUES (?)", n.String()); err != nil {
			return fmt.Errorf("inserting unit info %s: %w", n, err)
		}
		if err := writeDependencies(tx, n, d.Infos[n].Dependencies); err != nil {
			return err
		}
	}

	for _, n := range names {
		u, ok := d.Units[n]
		if !ok {
			continue
		}
		if err := writeUnit(tx, u); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func writeDependencies(tx *sql.Tx, n unit.Name, deps unit.Dependencies) error {
	for _, rel := range []struct {
		name    string
		targets []unit.Name
	}{
		{relNeeds, deps.Needs},
		{relUses, deps.Uses},
		{relWants, deps.Wants},
		{relBefore, deps.Before},
		{relAfter, deps.After},
	} {
		for pos, target := range rel.targets {
			if _, err := tx.Exec(
				"INSERT INTO dependencies (unit, relation, position, target) VALUES (?, ?, ?, ?)",
				n.String(), rel.name, pos, target.String(),
			); err != nil {
				return fmt.Errorf("inserting dependency %s %s %s: %w", n, rel.name, target, err)
			}
		}
	}
	return nil
}

func writeUnit(tx *sql.Tx, u *unit.Declared) error {
	s := u.Supervisor
	if _, err := tx.Exec(
		`INSERT INTO units (name, kind, description, cmd, pwd, root, user, grp, stdout, stderr,
			restart_delay, restart_attempts, restart_policy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID.String(), string(u.Type), u.Desc, s.Cmd, s.Pwd, s.Root, s.User, s.Group, s.Stdout, s.Stderr,
		int64(s.RestartDelay), s.RestartAttempts, s.RestartPolicy.String(),
	); err != nil {
		return fmt.Errorf("inserting unit %s: %w", u.ID, err)
	}

	for pos, arg := range s.Args {
		if _, err := tx.Exec("INSERT INTO unit_args (unit, position, value) VALUES (?, ?, ?)", u.ID.String(), pos, arg); err != nil {
			return fmt.Errorf("inserting argument of %s: %w", u.ID, err)
		}
	}
	for pos, pair := range s.Env {
		if _, err := tx.Exec("INSERT INTO unit_env (unit, position, value) VALUES (?, ?, ?)", u.ID.String(), pos, pair); err != nil {
			return fmt.Errorf("inserting environment of %s: %w", u.ID, err)
		}
	}
	return nil
}

func readDatabase(conn *sql.DB) (*Database, error) {
	d := &Database{
		Infos: make(map[unit.Name]unit.Info),
		Units: make(map[unit.Name]*unit.Declared),
	}

	count, err := readLevelCount(conn)
	if err != nil {
		return nil, err
	}
	d.Enabled = make([]unit.NameSet, count)
	d.Levels = make([]Level, count)
	for i := range d.Enabled {
		d.Enabled[i] = make(unit.NameSet)
	}

	if err := readEnabled(conn, d); err != nil {
		return nil, err
	}
	if err := readWaves(conn, d); err != nil {
		return nil, err
	}
	if err := readInfos(conn, d); err != nil {
		return nil, err
	}
	if err := readUnits(conn, d); err != nil {
		return nil, err
	}
	return d, nil
}

func readLevelCount(conn *sql.DB) (int, error) {
	var count int
	if err := conn.QueryRow("SELECT COUNT(*) FROM levels").Scan(&count); err != nil {
		return 0, fmt.Errorf("reading levels: %w", err)
	}
	return count, nil
}

func readEnabled(conn *sql.DB, d *Database) error {
	rows, err := conn.Query("SELECT level, unit FROM enabled ORDER BY level, unit")
	if err != nil {
		return fmt.Errorf("reading enabled units: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var level int
		var name string
		if err := rows.Scan(&level, &name); err != nil {
			return fmt.Errorf("scanning enabled unit: %w", err)
		}
		if level < 0 || level >= len(d.Enabled) {
			return fmt.Errorf("%w: %d", ErrUnknownLevel, level)
		}
		d.Enabled[level].Add(unit.NewName(name))
	}
	return rows.Err()
}

func readWaves(conn *sql.DB, d *Database) error {
	rows, err := conn.Query("SELECT level, wave, unit FROM waves ORDER BY level, wave, unit")
	if err != nil {
		return fmt.Errorf("reading waves: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var level, wave int
		var name string
		if err := rows.Scan(&level, &wave, &name); err != nil {
			return fmt.Errorf("scanning wave: %w", err)
		}
		if level < 0 || level >= len(d.Levels) {
			return fmt.Errorf("%w: %d", ErrUnknownLevel, level)
		}
		for len(d.Levels[level]) <= wave {
			d.Levels[level] = append(d.Levels[level], nil)
		}
		d.Levels[level][wave] = append(d.Levels[level][wave], unit.NewName(name))
	}
	return rows.Err()
}

func readInfos(conn *sql.DB, d *Database) error {
	rows, err := conn.Query("SELECT name FROM unit_infos")
	if err != nil {
		return fmt.Errorf("reading unit infos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning unit info: %w", err)
		}
		n := unit.NewName(name)
		d.Infos[n] = unit.Info{Name: n}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	deps, err := conn.Query("SELECT unit, relation, target FROM dependencies ORDER BY unit, relation, position")
	if err != nil {
		return fmt.Errorf("reading dependencies: %w", err)
	}
	defer func() { _ = deps.Close() }()

	for deps.Next() {
		var name, relation, target string
		if err := deps.Scan(&name, &relation, &target); err != nil {
			return fmt.Errorf("scanning dependency: %w", err)
		}
		n := unit.NewName(name)
		info, ok := d.Infos[n]
		if !ok {
			return fmt.Errorf("%w: dependency of %s", ErrUnknownUnit, name)
		}
		t := unit.NewName(target)
		switch relation {
		case relNeeds:
			info.Dependencies.Needs = append(info.Dependencies.Needs, t)
		case relUses:
			info.Dependencies.Uses = append(info.Dependencies.Uses, t)
		case relWants:
			info.Dependencies.Wants = append(info.Dependencies.Wants, t)
		case relBefore:
			info.Dependencies.Before = append(info.Dependencies.Before, t)
		case relAfter:
			info.Dependencies.After = append(info.Dependencies.After, t)
		default:
			return fmt.Errorf("unknown relation %q", relation)
		}
		d.Infos[n] = info
	}
	return deps.Err()
}

func readUnits(conn *sql.DB, d *Database) error {
	rows, err := conn.Query(`SELECT name, kind, description, cmd, pwd, root, user, grp, stdout, stderr,
		restart_delay, restart_attempts, restart_policy FROM units ORDER BY name`)
	if err != nil {
		return fmt.Errorf("reading units: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			name, kind, policy string
			delay              int64
			u                  unit.Declared
			s                  = &u.Supervisor
		)
		if err := rows.Scan(&name, &kind, &u.Desc, &s.Cmd, &s.Pwd, &s.Root, &s.User, &s.Group,
			&s.Stdout, &s.Stderr, &delay, &s.RestartAttempts, &policy); err != nil {
			return fmt.Errorf("scanning unit: %w", err)
		}

		u.ID = unit.NewName(name)
		if u.Type, err = unit.ParseType(kind); err != nil {
			return fmt.Errorf("unit %s: %w", name, err)
		}
		if s.RestartPolicy, err = supervisor.ParsePolicy(policy); err != nil {
			return fmt.Errorf("unit %s: %w", name, err)
		}
		s.RestartDelay = uint64(delay)
		u.Deps = d.Infos[u.ID].Dependencies.Clone()

		d.Units[u.ID] = &u
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if err := readStrings(conn, "unit_args", d, func(u *unit.Declared, v string) {
		u.Supervisor.Args = append(u.Supervisor.Args, v)
	}); err != nil {
		return err
	}
	return readStrings(conn, "unit_env", d, func(u *unit.Declared, v string) {
		u.Supervisor.Env = append(u.Supervisor.Env, v)
	})
}

func readStrings(conn *sql.DB, table string, d *Database, add func(*unit.Declared, string)) error {
	rows, err := conn.Query("SELECT unit, value FROM " + table + " ORDER BY unit, position")
	if err != nil {
		return fmt.Errorf("reading %s: %w", strings.ReplaceAll(table, "_", " "), err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return fmt.Errorf("scanning %s: %w", table, err)
		}
		u, ok := d.Units[unit.NewName(name)]
		if !ok {
			return fmt.Errorf("%w: %s row for %s", ErrUnknownUnit, table, name)
		}
		add(u, value)
	}
	return rows.Err()
}
