package unitfile

import (
	"io"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/trly/unitd/internal/supervisor"
	"github.com/trly/unitd/internal/unit"
)

// Render writes u as a systemd-style unit file that ParseService reads back.
func Render(w io.Writer, u *unit.Declared) error {
	file := ini.Empty(ini.LoadOptions{AllowShadows: true})

	sec, err := file.NewSection("Unit")
	if err != nil {
		return err
	}
	set(sec, "Name", u.ID.String())
	set(sec, "Description", u.Desc)
	set(sec, "Needs", joinNames(u.Deps.Needs))
	set(sec, "Uses", joinNames(u.Deps.Uses))
	set(sec, "Wants", joinNames(u.Deps.Wants))
	set(sec, "Before", joinNames(u.Deps.Before))
	set(sec, "After", joinNames(u.Deps.After))

	if sec, err = file.NewSection("Service"); err != nil {
		return err
	}
	opts := u.Supervisor
	set(sec, "Type", string(u.Type))
	set(sec, "ExecStart", strings.Join(append([]string{opts.Cmd}, opts.Args...), " "))
	for _, pair := range opts.Env {
		add(sec, "Environment", pair)
	}
	set(sec, "WorkingDirectory", opts.Pwd)
	set(sec, "RootDirectory", opts.Root)
	set(sec, "User", opts.User)
	set(sec, "Group", opts.Group)
	set(sec, "StandardOutput", opts.Stdout)
	set(sec, "StandardError", opts.Stderr)
	set(sec, "Restart", opts.RestartPolicy.String())
	if opts.RestartDelay > 0 {
		set(sec, "RestartSec", strconv.FormatUint(opts.RestartDelay, 10))
	}
	if opts.RestartAttempts != supervisor.Unlimited {
		set(sec, "RestartAttempts", strconv.Itoa(opts.RestartAttempts))
	}

	_, err = file.WriteTo(w)
	return err
}

func set(sec *ini.Section, key, value string) {
	if value == "" {
		return
	}
	_, _ = sec.NewKey(key, value)
}

// add appends value as a repeated directive.
func add(sec *ini.Section, key, value string) {
	if k, err := sec.GetKey(key); err == nil {
		_ = k.AddShadow(value)
		return
	}
	_, _ = sec.NewKey(key, value)
}

func joinNames(names []unit.Name) string {
	s := make([]string, len(names))
	for i, n := range names {
		s[i] = n.String()
	}
	return strings.Join(s, " ")
}
