package framework

import "slices"

// Capabilities lists the features a TLS backend reports, such as "tls1.3" or
// "negotiated-group".
type Capabilities []string

// Has returns true if the specified string appears in the list.
func (cs Capabilities) Has(name string) bool {
	return slices.Contains(cs, name)
}

// Intersect returns the capabilities present in both lists, in the order of cs.
func (cs Capabilities) Intersect(other Capabilities) Capabilities {
	var ret Capabilities
	for _, c := range cs {
		if other.Has(c) {
			ret = append(ret, c)
		}
	}
	return ret
}
