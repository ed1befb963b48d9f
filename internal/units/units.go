package units

import (
	"context"
	"strings"

	"github.com/trly/unitd/internal/db"
	"github.com/trly/unitd/internal/log"
	"github.com/trly/unitd/internal/supervisor"
	"github.com/trly/unitd/internal/unit"
)

// DefaultHostname is used when /etc/hostname is missing or empty.
const DefaultHostname = "localhost"

type hostname struct {
	unit.Base
	host   Host
	logger log.Logger
}

func (u *hostname) Name() unit.Name     { return Hostname }
func (u *hostname) Description() string { return "set the hostname from /etc/hostname" }

func (u *hostname) Start(context.Context) error {
	name := DefaultHostname
	if b, err := u.host.ReadFile("/etc/hostname"); err == nil {
		if s := strings.TrimSpace(string(b)); s != "" {
			name = s
		}
	}

	u.logger.Info("Setting hostname", "hostname", name)
	if err := u.host.Sethostname(name); err != nil {
		return unit.NewRecoverable("set hostname", err)
	}
	return nil
}

// Getty returns a daemon unit running getty on tty.
func Getty(tty string, l unit.Launcher) *unit.Declared {
	opts := supervisor.NewOptions("getty", "38400", tty)
	opts.RestartPolicy = supervisor.Always
	opts.RestartDelay = 2

	var deps unit.Dependencies
	deps.RunAfter(DevFS, Hostname)

	d := &unit.Declared{
		ID:         unit.NewName("getty@" + tty),
		Type:       unit.Daemon,
		Desc:       "login prompt on " + tty,
		Deps:       deps,
		Supervisor: opts,
	}
	return d.Bind(l)
}

// Baked returns every unit compiled into init.
func Baked(h Host, l unit.Launcher, logger log.Logger) []unit.Unit {
	return []unit.Unit{
		&procFS{host: h, logger: logger},
		&sysFS{host: h, logger: logger},
		&runFS{host: h, logger: logger},
		&devFS{host: h, logger: logger},
		&devPts{host: h, logger: logger},
		&hostname{host: h, logger: logger},
		Getty("tty1", l),
	}
}

// DefaultDatabase enables the baked system units at level 0 and the gettys
// at level 1.
func DefaultDatabase(baked []unit.Unit) (*db.Database, error) {
	infos := make(map[unit.Name]unit.Info, len(baked))
	base, gettys := make(unit.NameSet), make(unit.NameSet)
	for _, u := range baked {
		infos[u.Name()] = unit.InfoOf(u)
		if strings.HasPrefix(u.Name().String(), "getty") {
			gettys.Add(u.Name())
		} else {
			base.Add(u.Name())
		}
	}
	return db.New(infos, nil, []unit.NameSet{base, gettys})
}
