package net

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{1, 2, 3}))
	assert.Equal(t, []byte{5, 0, 1, 2, 3}, buf.Bytes())

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestFrameErrors(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{2, 0}))
	assert.Error(t, err, "empty payload")

	_, err = ReadFrame(bytes.NewReader([]byte{9, 0, 1}))
	assert.Error(t, err, "truncated payload")

	assert.ErrorIs(t, WriteFrame(&bytes.Buffer{}, nil), ErrFrameTooLarge)
	assert.ErrorIs(t, WriteFrame(&bytes.Buffer{}, make([]byte, MaxPayload+1)), ErrFrameTooLarge)
}

func newPipeSession(t *testing.T, opts SessionOptions) (*Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	sess := NewSession(server, 1, opts, zap.NewNop())
	sess.Start()
	t.Cleanup(func() {
		sess.Close()
		client.Close()
	})
	return sess, client
}

func TestSessionMovesFrames(t *testing.T) {
	sess, client := newPipeSession(t, SessionOptions{InQueueSize: 4, OutQueueSize: 4})
	assert.Equal(t, packet.StateConnected, sess.State())

	go func() { _ = WriteFrame(client, []byte{0x01, 0xAA}) }()
	select {
	case got := <-sess.InQueue:
		assert.Equal(t, []byte{0x01, 0xAA}, got)
	case <-time.After(time.Second):
		t.Fatal("no inbound packet")
	}

	sess.Send([]byte{0x81, 0x01})
	got, err := ReadFrame(client)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x01}, got)
}

func TestSessionClosesWhenPeerLeaves(t *testing.T) {
	sess, client := newPipeSession(t, SessionOptions{})
	client.Close()
	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("session still open")
	}
	assert.True(t, sess.IsClosed())
	assert.Equal(t, packet.StateDisconnecting, sess.State())
	assert.NotPanics(t, func() { sess.Send([]byte{1}) })
}

func TestSessionRateLimit(t *testing.T) {
	sess, client := newPipeSession(t, SessionOptions{InQueueSize: 16, PacketsPerSecond: 2})
	go func() {
		for i := 0; i < 5; i++ {
			if err := WriteFrame(client, []byte{0x02, byte(i)}); err != nil {
				return
			}
		}
	}()
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("rate limit did not close the session")
	}
}

func TestServerAccepts(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", SessionOptions{InQueueSize: 4, OutQueueSize: 4}, zap.NewNop())
	require.NoError(t, err)
	go srv.AcceptLoop()
	defer srv.Shutdown()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case sess := <-srv.NewSessions():
		assert.Equal(t, uint64(1), sess.ID)
		sess.Close()
	case <-time.After(time.Second):
		t.Fatal("no session")
	}
}
