package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionFraming(t *testing.T) {
	sess := NewSession(7, "10.0.0.1", time.Now())
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "10.0.0.1", sess.Identity.Hostname)

	sess.AppendReceived([]byte("NICK al"))
	assert.False(t, sess.HasCompleteLine())
	assert.Equal(t, "", sess.PopLine())

	sess.AppendReceived([]byte("ice\r\nUSER a 0 * :A\r\nPI"))
	assert.True(t, sess.HasCompleteLine())
	assert.Equal(t, "NICK alice", sess.PopLine())
	assert.Equal(t, "USER a 0 * :A", sess.PopLine())
	assert.False(t, sess.HasCompleteLine())
	assert.Equal(t, []byte("PI"), sess.recv)

	sess.AppendReceived([]byte("NG\r\n\r\n"))
	assert.Equal(t, "PING", sess.PopLine())
	assert.Equal(t, "", sess.PopLine(), "An empty line is still a line")
	assert.Empty(t, sess.recv)
}

func TestSessionSendBookkeeping(t *testing.T) {
	sess := NewSession(7, "10.0.0.1", time.Now())
	assert.False(t, sess.HasPendingSend())

	sess.SendLine("PING a")
	sess.SendLine("PING b\r\n")
	assert.Equal(t, "PING a\r\nPING b\r\n", string(sess.Pending()))

	sess.ClearSent(3)
	assert.Equal(t, "G a\r\nPING b\r\n", string(sess.Pending()))
	sess.ClearSent(100)
	assert.False(t, sess.HasPendingSend())
}

func TestSessionCloseKeepsFirstReason(t *testing.T) {
	sess := NewSession(7, "10.0.0.1", time.Now())
	sess.Close("first")
	sess.Close("second")
	assert.True(t, sess.Closing())
	assert.Equal(t, "first", sess.QuitReason())
}

func TestSessionIDsAreUnique(t *testing.T) {
	now := time.Now()
	a, b := NewSession(1, "x", now), NewSession(1, "x", now)
	assert.NotEqual(t, a.ID, b.ID)
}
