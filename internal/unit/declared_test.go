package unit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/unitd/internal/supervisor"
)

type fakeLauncher struct {
	launched []supervisor.Options
	killed   []int
	pid      int
	err      error
}

func (f *fakeLauncher) Launch(_ context.Context, opts supervisor.Options) (int, error) {
	f.launched = append(f.launched, opts)
	return f.pid, f.err
}

func (f *fakeLauncher) Kill(_ context.Context, pid int) error {
	f.killed = append(f.killed, pid)
	return nil
}

func newDeclared(typ Type) *Declared {
	opts := supervisor.NewOptions("/usr/sbin/crond", "-f")
	opts.RestartPolicy = supervisor.Always
	return &Declared{ID: NewName("crond"), Type: typ, Supervisor: opts}
}

func TestDeclaredStartStop(t *testing.T) {
	ctx := context.Background()
	l := &fakeLauncher{pid: 4242}
	d := newDeclared(Daemon).Bind(l)

	ok, err := d.Prepare(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, d.Start(ctx))
	assert.Equal(t, 4242, d.Pid())
	require.Len(t, l.launched, 1)
	assert.Equal(t, supervisor.Always, l.launched[0].RestartPolicy)

	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, []int{4242}, l.killed)
	assert.Equal(t, 0, d.Pid())
}

func TestDeclaredOneshotRestartsOnFailure(t *testing.T) {
	l := &fakeLauncher{pid: 7}
	d := newDeclared(Oneshot).Bind(l)

	require.NoError(t, d.Start(context.Background()))
	assert.Equal(t, supervisor.OnFailure, l.launched[0].RestartPolicy)
}

func TestDeclaredStopWithoutStart(t *testing.T) {
	d := newDeclared(Daemon).Bind(&fakeLauncher{})

	err := d.Stop(context.Background())
	require.Error(t, err)
	assert.True(t, IsRecoverable(err))
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestDeclaredStartFailureIsRecoverable(t *testing.T) {
	d := newDeclared(Daemon).Bind(&fakeLauncher{err: errors.New("exec format error")})

	err := d.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsRecoverable(err))
}

func TestDeclaredUnbound(t *testing.T) {
	err := newDeclared(Daemon).Start(context.Background())
	require.Error(t, err)
	assert.False(t, IsRecoverable(err))
}

func TestDeclaredPrepareWithoutCommand(t *testing.T) {
	d := &Declared{ID: NewName("empty")}
	ok, err := d.Prepare(context.Background())
	assert.False(t, ok)
	assert.True(t, IsRecoverable(err))
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("")
	require.NoError(t, err)
	assert.Equal(t, Daemon, typ)

	typ, err = ParseType("oneshot")
	require.NoError(t, err)
	assert.Equal(t, Oneshot, typ)

	_, err = ParseType("timer")
	assert.Error(t, err)
}

func TestDependenciesBuilder(t *testing.T) {
	var deps Dependencies
	deps.Need(NewName("procfs")).Want(NewName("syslog")).RunAfter(NewName("hostname"))

	c := deps.Clone()
	c.Needs[0] = NewName("sysfs")

	assert.Equal(t, Names("procfs"), deps.Needs)
	assert.Equal(t, Names("syslog"), deps.Wants)
	assert.Equal(t, Names("hostname"), deps.After)
}
