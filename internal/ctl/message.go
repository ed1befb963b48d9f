// Package ctl carries control messages from the command line to init over a
// named pipe.
package ctl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a control message.
type Kind string

// Message kinds as written on the pipe.
const (
	Halt     Kind = "halt"
	Poweroff Kind = "poweroff"
	Reboot   Kind = "reboot"
	Kexec    Kind = "kexec"
	Start    Kind = "start"
	Stop     Kind = "stop"
	DBReload Kind = "db-reload"
)

// ErrMalformed is returned for messages that cannot be parsed.
var ErrMalformed = errors.New("malformed control message")

// Message is one request to init.
type Message struct {
	Kind  Kind
	Unit  string
	Level int
}

// IsTeardown reports whether m shuts the system down.
func (m Message) IsTeardown() bool {
	switch m.Kind {
	case Halt, Poweroff, Reboot, Kexec:
		return true
	}
	return false
}

// String renders m in wire format, e.g. "start:getty@tty2:1".
func (m Message) String() string {
	if m.Kind == Start || m.Kind == Stop {
		return fmt.Sprintf("%s:%s:%d", m.Kind, m.Unit, m.Level)
	}
	return string(m.Kind)
}

// Parse decodes one wire-format line.
func Parse(line string) (Message, error) {
	line = strings.TrimSpace(line)

	switch k := Kind(line); k {
	case Halt, Poweroff, Reboot, Kexec, DBReload:
		return Message{Kind: k}, nil
	}

	parts := strings.Split(line, ":")
	if len(parts) != 3 {
		return Message{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}

	kind := Kind(parts[0])
	if kind != Start && kind != Stop {
		return Message{}, fmt.Errorf("%w: unknown kind %q", ErrMalformed, parts[0])
	}
	if parts[1] == "" {
		return Message{}, fmt.Errorf("%w: missing unit", ErrMalformed)
	}
	level, err := strconv.Atoi(parts[2])
	if err != nil || level < 0 {
		return Message{}, fmt.Errorf("%w: bad level %q", ErrMalformed, parts[2])
	}

	return Message{Kind: kind, Unit: parts[1], Level: level}, nil
}
