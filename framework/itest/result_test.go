package itest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestIDString(t *testing.T) {
	assert.Equal(t, "", TestID{}.String())
	assert.Equal(t, "handshake", TestID{"handshake"}.String())
	assert.Equal(t, "handshake/gotls to utls/memory", TestID{"handshake", "gotls to utls", "memory"}.String())
}

func TestTestIDPlusDoesNotModifyReceiver(t *testing.T) {
	id1 := TestID{"matrix"}
	id2a := id1.Plus("X25519")
	id2b := id1.Plus("P-256")
	assert.Equal(t, TestID{"matrix"}, id1)
	assert.Equal(t, TestID{"matrix", "X25519"}, id2a)
	assert.Equal(t, TestID{"matrix", "P-256"}, id2b)
}

func TestTestResultAnnotation(t *testing.T) {
	r := TestResult{Annotations: []Annotation{{"group", "P-256"}, {"transport", "memory"}, {"group", "X25519"}}}
	v, ok := r.Annotation("group")
	assert.True(t, ok)
	assert.Equal(t, "X25519", v)
	_, ok = r.Annotation("backend")
	assert.False(t, ok)
}

func TestTestFailureWrapsError(t *testing.T) {
	cause := errors.New("handshake stalled")
	f := TestFailure{ID: TestID{"a", "b"}, Err: cause}
	assert.Equal(t, "[a/b]: handshake stalled", f.Error())
	assert.ErrorIs(t, f, cause)
}
