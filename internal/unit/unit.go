// Package unit defines the contract every startable entity implements and the
// value types shared by the resolver, the database and the loader.
package unit

import "context"

// Unit is a named, independently startable and stoppable piece of system
// functionality.
//
// Boot calls Prepare and, if it reports true, Start. Shutdown calls Stop and
// then Teardown. Start is called at most once per boot.
type Unit interface {
	Name() Name
	Description() string
	Dependencies() Dependencies

	// Prepare checks preconditions. Returning false skips Start without
	// counting as a failure.
	Prepare(ctx context.Context) (bool, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Teardown(ctx context.Context) error
}

// Base provides no-op hooks. Embed it and override what the unit needs.
type Base struct{}

// Description returns an empty description.
func (Base) Description() string { return "" }

// Dependencies returns no dependencies.
func (Base) Dependencies() Dependencies { return Dependencies{} }

// Prepare always allows the start.
func (Base) Prepare(context.Context) (bool, error) { return true, nil }

// Start does nothing.
func (Base) Start(context.Context) error { return nil }

// Stop does nothing.
func (Base) Stop(context.Context) error { return nil }

// Teardown does nothing.
func (Base) Teardown(context.Context) error { return nil }
