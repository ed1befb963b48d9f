package unitfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	sdunit "github.com/coreos/go-systemd/v22/unit"
	"gopkg.in/yaml.v3"

	"github.com/trly/unitd/internal/log"
	"github.com/trly/unitd/internal/unit"
)

// Extensions maps supported file extensions to their parsers.
var Extensions = map[string]func(io.Reader) (*Declaration, error){
	".toml":    ParseTOML,
	".yaml":    ParseYAML,
	".yml":     ParseYAML,
	".service": ParseService,
}

var (
	// ErrUnsupported is returned for files with an unknown extension.
	ErrUnsupported = errors.New("unsupported unit file")
	// ErrOutsideDir is returned for unit names that resolve outside the unit directory.
	ErrOutsideDir = errors.New("path escapes unit directory")
)

// ParseTOML decodes a TOML declaration. Unknown keys are rejected.
func ParseTOML(r io.Reader) (*Declaration, error) {
	var d Declaration
	md, err := toml.NewDecoder(r).Decode(&d)
	if err != nil {
		return nil, fmt.Errorf("decoding toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("decoding toml: unknown keys %s", strings.Join(keys, ", "))
	}
	return &d, nil
}

// ParseYAML decodes a YAML declaration. Unknown keys are rejected.
func ParseYAML(r io.Reader) (*Declaration, error) {
	var d Declaration
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	return &d, nil
}

// ParseService decodes a systemd-style unit file. List directives may be
// repeated or hold several space-separated values. ExecStart is split on
// whitespace. The [Install] section is ignored.
func ParseService(r io.Reader) (*Declaration, error) {
	opts, err := sdunit.DeserializeOptions(r)
	if err != nil {
		return nil, fmt.Errorf("decoding unit file: %w", err)
	}

	var d Declaration
	for _, o := range opts {
		section := strings.TrimSpace(o.Section)
		name := strings.TrimSpace(o.Name)
		value := strings.TrimSpace(o.Value)

		if section == "Install" {
			continue
		}
		if err := d.setDirective(section, name, value); err != nil {
			return nil, fmt.Errorf("[%s] %s: %w", section, name, err)
		}
	}
	return &d, nil
}

func (d *Declaration) setDirective(section, name, value string) error {
	switch section + "." + name {
	case "Unit.Name":
		d.Name = value
	case "Unit.Description":
		d.Description = value
	case "Unit.Needs":
		d.Needs = append(d.Needs, strings.Fields(value)...)
	case "Unit.Uses":
		d.Uses = append(d.Uses, strings.Fields(value)...)
	case "Unit.Wants":
		d.Wants = append(d.Wants, strings.Fields(value)...)
	case "Unit.Before":
		d.Before = append(d.Before, strings.Fields(value)...)
	case "Unit.After":
		d.After = append(d.After, strings.Fields(value)...)
	case "Service.Type":
		d.Kind = value
	case "Service.ExecStart":
		argv := strings.Fields(value)
		if len(argv) == 0 {
			return errors.New("empty command")
		}
		d.Cmd, d.Args = argv[0], argv[1:]
	case "Service.Environment":
		d.Env = append(d.Env, strings.Fields(value)...)
	case "Service.WorkingDirectory":
		d.Pwd = value
	case "Service.RootDirectory":
		d.Root = value
	case "Service.User":
		d.User = value
	case "Service.Group":
		d.Group = value
	case "Service.StandardOutput":
		d.Stdout = value
	case "Service.StandardError":
		d.Stderr = value
	case "Service.Restart":
		d.RestartPolicy = value
	case "Service.RestartSec":
		delay, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		d.RestartDelay = delay
	case "Service.RestartAttempts":
		attempts, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		d.RestartAttempts = &attempts
	default:
		return errors.New("unknown directive")
	}
	return nil
}

// Parse reads the declaration at path. A declaration without a name takes
// the file name minus its extension.
func Parse(path string) (*Declaration, error) {
	ext := filepath.Ext(path)
	parse, ok := Extensions[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	d, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if d.Name == "" {
		d.Name = strings.TrimSuffix(filepath.Base(path), ext)
	}
	return d, nil
}

// LoadDir reads every supported file in dir. Files that fail to parse or
// validate are logged and left out; their errors are joined into the
// returned error. Two files declaring the same name are an error for the
// second one.
func LoadDir(dir string, logger log.Logger) ([]*unit.Declared, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading unit directory: %w", err)
	}

	var (
		units []*unit.Declared
		errs  []error
		seen  = make(map[unit.Name]string)
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := Extensions[filepath.Ext(e.Name())]; !ok {
			logger.Debug("Skipping file in unit directory", "file", e.Name())
			continue
		}

		path := filepath.Join(dir, e.Name())
		u, err := load(path)
		if err != nil {
			logger.Warn("Skipping unit file", "file", path, "error", err)
			errs = append(errs, err)
			continue
		}
		if prev, dup := seen[u.ID]; dup {
			err := fmt.Errorf("%s: unit %s already declared in %s", path, u.ID, prev)
			logger.Warn("Skipping unit file", "file", path, "error", err)
			errs = append(errs, err)
			continue
		}
		seen[u.ID] = path
		units = append(units, u)
	}
	return units, errors.Join(errs...)
}

func load(path string) (*unit.Declared, error) {
	d, err := Parse(path)
	if err != nil {
		return nil, err
	}
	u, err := d.Unit()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

// Find returns the declaration for name in dir, trying every supported
// extension.
func Find(dir, name string) (*unit.Declared, error) {
	for ext := range Extensions {
		path, err := within(dir, name+ext)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); err == nil {
			return load(path)
		}
	}
	return nil, fmt.Errorf("no declaration for %s in %s: %w", name, dir, os.ErrNotExist)
}

// within joins file onto dir and ensures the result names an entry of dir.
func within(dir, file string) (string, error) {
	absBase, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return "", fmt.Errorf("failed to resolve unit directory: %w", err)
	}

	path := filepath.Join(absBase, file)
	rel, err := filepath.Rel(absBase, path)
	if err != nil || rel == "." || rel == ".." || strings.ContainsRune(rel, filepath.Separator) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDir, file)
	}
	return path, nil
}
