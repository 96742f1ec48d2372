package transport

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketPair(t *testing.T) {
	ln, err := ListenLoopback()
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	accepted := make(chan End, 1)
	go func() {
		end, err := ln.Accept()
		if err == nil {
			accepted <- end
		}
		close(accepted)
	}()

	client, err := DialLoopback(ln.Addr())
	require.NoError(t, err)
	server := <-accepted
	require.NotNil(t, server)
	assert.True(t, client.Blocking())

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := io.ReadFull(server, buf[:4])
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	_, err = client.Read(buf)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = server.Read(buf)
	assert.Equal(t, io.EOF, err)
	require.NoError(t, server.Close())
}

func TestListenerCloseUnblocksAccept(t *testing.T) {
	ln, err := ListenLoopback()
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() {
		_, err := ln.Accept()
		result <- err
	}()
	require.NoError(t, ln.Close())
	assert.ErrorIs(t, <-result, ErrClosed)
	assert.NoError(t, ln.Close())
}
