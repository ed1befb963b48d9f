// Package unitfile reads unit declarations from the unit directory and
// renders declared units back out.
package unitfile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trly/unitd/internal/supervisor"
	"github.com/trly/unitd/internal/unit"
)

// Declaration is the on-disk form of a declared unit.
type Declaration struct {
	Name        string   `toml:"name" yaml:"name" validate:"required,unitname"`
	Kind        string   `toml:"kind" yaml:"kind" validate:"omitempty,oneof=oneshot daemon"`
	Description string   `toml:"description" yaml:"description"`
	Before      []string `toml:"before" yaml:"before" validate:"dive,unitname"`
	After       []string `toml:"after" yaml:"after" validate:"dive,unitname"`
	Needs       []string `toml:"needs" yaml:"needs" validate:"dive,unitname"`
	Uses        []string `toml:"uses" yaml:"uses" validate:"dive,unitname"`
	Wants       []string `toml:"wants" yaml:"wants" validate:"dive,unitname"`

	Cmd    string   `toml:"cmd" yaml:"cmd" validate:"required"`
	Args   []string `toml:"args" yaml:"args"`
	Env    []string `toml:"env" yaml:"env" validate:"dive,envpair"`
	Pwd    string   `toml:"pwd" yaml:"pwd" validate:"omitempty,startswith=/"`
	Root   string   `toml:"root" yaml:"root" validate:"omitempty,startswith=/"`
	User   string   `toml:"user" yaml:"user"`
	Group  string   `toml:"group" yaml:"group"`
	Stdout string   `toml:"stdout" yaml:"stdout"`
	Stderr string   `toml:"stderr" yaml:"stderr"`

	RestartDelay    uint64 `toml:"restart-delay" yaml:"restart-delay"`
	RestartAttempts *int   `toml:"restart-attempts" yaml:"restart-attempts" validate:"omitempty,min=-1"`
	RestartPolicy   string `toml:"restart-policy" yaml:"restart-policy" validate:"omitempty,oneof=never on-failure on-success always"`
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid unit declaration")

var (
	unitNamePattern = regexp.MustCompile(`^[A-Za-z0-9@._+-]+$`)
	envPattern      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)
	validate        = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("unitname", func(fl validator.FieldLevel) bool {
		return unitNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("envpair", func(fl validator.FieldLevel) bool {
		return envPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks d against the declaration rules.
func (d *Declaration) Validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// Unit validates d and converts it to a declared unit.
func (d *Declaration) Unit() (*unit.Declared, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	typ, err := unit.ParseType(d.Kind)
	if err != nil {
		return nil, err
	}

	opts := supervisor.NewOptions(d.Cmd, d.Args...)
	opts.Env = d.Env
	opts.Pwd = d.Pwd
	opts.Root = d.Root
	opts.User = d.User
	opts.Group = d.Group
	opts.Stdout = d.Stdout
	opts.Stderr = d.Stderr
	opts.RestartDelay = d.RestartDelay
	if d.RestartAttempts != nil {
		opts.RestartAttempts = *d.RestartAttempts
	}
	if d.RestartPolicy != "" {
		if opts.RestartPolicy, err = supervisor.ParsePolicy(d.RestartPolicy); err != nil {
			return nil, err
		}
	}

	var deps unit.Dependencies
	deps.Need(unit.Names(d.Needs...)...)
	deps.Use(unit.Names(d.Uses...)...)
	deps.Want(unit.Names(d.Wants...)...)
	deps.RunBefore(unit.Names(d.Before...)...)
	deps.RunAfter(unit.Names(d.After...)...)

	return &unit.Declared{
		ID:         unit.NewName(d.Name),
		Type:       typ,
		Desc:       d.Description,
		Deps:       deps,
		Supervisor: opts,
	}, nil
}

// FromUnit returns the declaration that produces u.
func FromUnit(u *unit.Declared) *Declaration {
	strs := func(names []unit.Name) []string {
		if len(names) == 0 {
			return nil
		}
		out := make([]string, len(names))
		for i, n := range names {
			out[i] = n.String()
		}
		return out
	}

	opts := u.Supervisor
	d := &Declaration{
		Name:          u.ID.String(),
		Kind:          string(u.Type),
		Description:   u.Desc,
		Needs:         strs(u.Deps.Needs),
		Uses:          strs(u.Deps.Uses),
		Wants:         strs(u.Deps.Wants),
		Before:        strs(u.Deps.Before),
		After:         strs(u.Deps.After),
		Cmd:           opts.Cmd,
		Args:          opts.Args,
		Env:           opts.Env,
		Pwd:           opts.Pwd,
		Root:          opts.Root,
		User:          opts.User,
		Group:         opts.Group,
		Stdout:        opts.Stdout,
		Stderr:        opts.Stderr,
		RestartDelay:  opts.RestartDelay,
		RestartPolicy: opts.RestartPolicy.String(),
	}
	if opts.RestartAttempts != supervisor.Unlimited {
		attempts := opts.RestartAttempts
		d.RestartAttempts = &attempts
	}
	return d
}
