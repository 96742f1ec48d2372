// Package internal holds call-site helpers for the itest stacktrace tests. They live outside the
// itest package so that stack filtering does not remove them.
package internal

func Call(action func()) {
	action()
}
