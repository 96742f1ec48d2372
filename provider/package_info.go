// Package provider models the process-wide cryptographic provider registry that TLS backends
// consult for key-exchange groups.
//
// A provider is registered by name with an initializer (AddBuiltin) and then loaded (Load),
// which runs the initializer and publishes the provider's groups into a LibContext. The global
// context is populated exactly once per process by EnsureLoaded, which must run before any
// connection is constructed. There is no global teardown: once loaded, the registry stays loaded
// for the life of the process.
package provider
