package provider

import "fmt"

// GroupKind describes the key-exchange family of a Group.
type GroupKind int

const (
	Classical GroupKind = iota
	Hybrid
	PostQuantum
)

func (k GroupKind) String() string {
	switch k {
	case Classical:
		return "classical"
	case Hybrid:
		return "hybrid"
	case PostQuantum:
		return "post-quantum"
	default:
		return fmt.Sprintf("GroupKind(%d)", int(k))
	}
}

// Group is a named key-exchange group as published by a provider.
type Group struct {
	// Name is the canonical name, which is what backends report as the negotiated group.
	Name string
	// ID is the TLS NamedGroup code point.
	ID uint16
	Kind GroupKind
	// Provider is the name of the provider that published the group.
	Provider string
	Aliases  []string
}

func (g Group) String() string {
	return fmt.Sprintf("%s(0x%04x)", g.Name, g.ID)
}

func (g Group) matches(name string) bool {
	if g.Name == name {
		return true
	}
	for _, a := range g.Aliases {
		if a == name {
			return true
		}
	}
	return false
}

// UnknownGroupName is the name reported for a negotiated code point that no loaded provider
// defines.
func UnknownGroupName(id uint16) string {
	return fmt.Sprintf("0x%04x", id)
}
