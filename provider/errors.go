package provider

import (
	"errors"
	"fmt"
)

// ErrNotLoaded is returned by group lookups on a context in which no provider has been loaded.
var ErrNotLoaded = errors.New("no provider has been loaded")

// RegistrationError means that adding or loading a provider failed. It is fatal to the whole
// process, since every handshake depends on the registry.
type RegistrationError struct {
	Op       string
	Provider string
	Err      error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("provider %s %q failed: %s", e.Op, e.Provider, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// UnknownGroupError is returned by LookupGroup for a name that no loaded provider defines.
type UnknownGroupError struct {
	Name string
}

func (e *UnknownGroupError) Error() string {
	return fmt.Sprintf("no loaded provider defines group %q", e.Name)
}
