// Package backend defines the uniform capability set that every TLS stack is driven through, and
// the Engine that lets a stack with a blocking handshake be stepped one round at a time.
//
// A Connection moves through Unstarted, Handshaking, and then exactly one of Established or
// Failed. Step after a terminal state returns the same terminal result. Close releases the
// backend session and the transport end exactly once, whatever state the connection is in.
package backend
