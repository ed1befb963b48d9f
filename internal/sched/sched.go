// Package sched runs tasks serially on one goroutine locked to one OS thread.
package sched

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrClosed is returned for tasks submitted after Close.
var ErrClosed = errors.New("scheduler closed")

type task struct {
	fn   func()
	done chan struct{}
}

// Scheduler owns a single OS thread.
type Scheduler struct {
	tid   int
	tasks chan task
	quit  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// New starts the scheduler thread.
func New() *Scheduler {
	s := &Scheduler{
		tasks: make(chan task),
		quit:  make(chan struct{}),
	}

	ready := make(chan struct{})
	s.wg.Add(1)
	go s.loop(ready)
	<-ready

	return s
}

func (s *Scheduler) loop(ready chan<- struct{}) {
	defer s.wg.Done()

	runtime.LockOSThread()
	// The thread is never unlocked so it exits with the goroutine and cannot
	// be handed to other goroutines.
	s.tid = unix.Gettid()
	close(ready)

	for {
		select {
		case <-s.quit:
			return
		case t := <-s.tasks:
			t.fn()
			if t.done != nil {
				close(t.done)
			}
		}
	}
}

// Tid returns the id of the owned thread.
func (s *Scheduler) Tid() int {
	return s.tid
}

// Owns reports whether the caller runs on the scheduler thread.
func (s *Scheduler) Owns() bool {
	return unix.Gettid() == s.tid
}

// Do runs fn on the scheduler thread and waits for it. When the caller is
// already on that thread fn runs inline.
func (s *Scheduler) Do(ctx context.Context, fn func()) error {
	if s.Owns() {
		fn()
		return nil
	}

	t := task{fn: fn, done: make(chan struct{})}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return ErrClosed
	case s.tasks <- t:
	}

	// Once accepted the task runs to completion.
	<-t.done
	return nil
}

// Post queues fn without waiting for it.
func (s *Scheduler) Post(ctx context.Context, fn func()) error {
	if s.Owns() {
		go func() { _ = s.Post(ctx, fn) }()
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return ErrClosed
	case s.tasks <- task{fn: fn}:
		return nil
	}
}

// Close stops the scheduler after the running task finishes.
func (s *Scheduler) Close() {
	s.once.Do(func() { close(s.quit) })
	s.wg.Wait()
}
