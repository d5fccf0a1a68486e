package ws

import (
	"net"
	"testing"
	"time"
)

// fakeConn is a minimal net.Conn for connection-table tests. It is not a
// syscall.Conn, so socketFD resolves it to -1; the tests below only exercise
// the ID-keyed paths.
type fakeConn struct {
	closed bool
}

func (c *fakeConn) Read(b []byte) (int, error)         { return 0, nil }
func (c *fakeConn) Write(b []byte) (int, error)        { return len(b), nil }
func (c *fakeConn) Close() error                       { c.closed = true; return nil }
func (c *fakeConn) LocalAddr() net.Addr                { return nil }
func (c *fakeConn) RemoteAddr() net.Addr               { return nil }
func (c *fakeConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func newTestConnection(id, userID string, fd int) (*Connection, *fakeConn) {
	fc := &fakeConn{}
	return &Connection{
		ID:        id,
		UserID:    userID,
		Conn:      fc,
		Fd:        fd,
		CreatedAt: time.Now(),
		LastPing:  time.Now(),
	}, fc
}

func TestConnectionManager_AddGetRemove(t *testing.T) {
	cm := NewConnectionManager()
	c, fc := newTestConnection("c1", "alice", 10)

	cm.Add(c)
	if got := cm.Get("c1"); got != c {
		t.Fatal("Get should return the added connection")
	}
	if got := cm.GetByFd(10); got != c {
		t.Fatal("GetByFd should return the added connection")
	}
	if cm.Count() != 1 {
		t.Fatalf("expected count 1, got %d", cm.Count())
	}

	if !cm.Remove("c1") {
		t.Fatal("Remove should report true for a known connection")
	}
	if !fc.closed {
		t.Error("Remove should close the underlying connection")
	}
	if cm.Get("c1") != nil {
		t.Error("connection should be gone after Remove")
	}
	if cm.GetByFd(10) != nil {
		t.Error("fd lookup should be gone after Remove")
	}
}

func TestConnectionManager_RemoveUnknown(t *testing.T) {
	cm := NewConnectionManager()
	if cm.Remove("ghost") {
		t.Error("Remove of unknown connection should report false")
	}
}

func TestConnectionManager_All(t *testing.T) {
	cm := NewConnectionManager()
	c1, _ := newTestConnection("c1", "alice", 10)
	c2, _ := newTestConnection("c2", "bob", 11)
	cm.Add(c1)
	cm.Add(c2)

	all := cm.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(all))
	}
	seen := map[string]bool{}
	for _, c := range all {
		seen[c.ID] = true
	}
	if !seen["c1"] || !seen["c2"] {
		t.Errorf("snapshot missing connections: %v", seen)
	}
}
