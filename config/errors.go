package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfig matches every configuration error with errors.Is.
var ErrConfig = errors.New("invalid connection configuration")

// ErrHostNameRejected is returned during peer verification when the host-name verifier rejects
// the peer's identity.
var ErrHostNameRejected = errors.New("host name rejected by verifier")

// TrustMaterialError means certificate or key data was malformed, or a key did not match its
// certificate.
type TrustMaterialError struct {
	Source string
	Err    error
}

func (e *TrustMaterialError) Error() string {
	return fmt.Sprintf("bad trust material from %s: %s", e.Source, e.Err)
}

func (e *TrustMaterialError) Unwrap() error       { return e.Err }
func (e *TrustMaterialError) Is(target error) bool { return target == ErrConfig }

// UnsupportedGroupError means a group name is not defined by any loaded provider.
type UnsupportedGroupError struct {
	Token string
	// Known lists the names that would have been accepted.
	Known []string
}

func (e *UnsupportedGroupError) Error() string {
	if e.Token == "" {
		return "empty group name or group list"
	}
	return fmt.Sprintf("unsupported group %q", e.Token)
}

func (e *UnsupportedGroupError) Is(target error) bool { return target == ErrConfig }

// RoleMismatchError means the trust material does not fit the role: a server without a private
// key, or a client with one.
type RoleMismatchError struct {
	Role   Role
	Reason string
}

func (e *RoleMismatchError) Error() string {
	return fmt.Sprintf("%s configuration: %s", e.Role, e.Reason)
}

func (e *RoleMismatchError) Is(target error) bool { return target == ErrConfig }

// UnknownPolicyError means a security policy name is not one of PolicyNames.
type UnknownPolicyError struct {
	Name string
}

func (e *UnknownPolicyError) Error() string {
	return fmt.Sprintf("unknown security policy %q (known policies: %s)", e.Name, strings.Join(PolicyNames(), ", "))
}

func (e *UnknownPolicyError) Is(target error) bool { return target == ErrConfig }

// HostNameRejectedError carries the identity that the verifier refused.
type HostNameRejectedError struct {
	Name string
}

func (e *HostNameRejectedError) Error() string {
	return fmt.Sprintf("%s: %q", ErrHostNameRejected, e.Name)
}

func (e *HostNameRejectedError) Is(target error) bool { return target == ErrHostNameRejected }
