package config

import "fmt"

// Role determines which side of the handshake an endpoint plays.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole accepts "client" or "server".
func ParseRole(s string) (Role, error) {
	switch s {
	case "client":
		return RoleClient, nil
	case "server":
		return RoleServer, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}
