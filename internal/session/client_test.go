package session

import (
	"sync/atomic"
	"testing"
)

func newTestClient(bufSize int) *Client {
	return NewClient(nil, bufSize)
}

func TestSubscribe(t *testing.T) {
	c := newTestClient(10)
	c.Subscribe([]string{"SAP.DE", "BMW.DE"})
	if !c.IsSubscribed("SAP.DE") {
		t.Fatal("should be subscribed to SAP.DE")
	}
	if !c.IsSubscribed("BMW.DE") {
		t.Fatal("should be subscribed to BMW.DE")
	}
	if c.IsSubscribed("ALV.DE") {
		t.Fatal("should not be subscribed to ALV.DE")
	}
}

func TestSubscribeAll(t *testing.T) {
	c := newTestClient(10)
	c.SubscribeAll()
	if !c.IsSubscribed("SAP.DE") || !c.IsSubscribed("ANY") {
		t.Fatal("should be subscribed to any symbol after SubscribeAll")
	}
	if !c.IsAllSubscribed() {
		t.Fatal("IsAllSubscribed should be true")
	}
}

func TestUnsubscribe(t *testing.T) {
	c := newTestClient(10)
	c.Subscribe([]string{"SAP.DE", "BMW.DE", "ALV.DE"})
	c.Unsubscribe([]string{"BMW.DE"})
	if c.IsSubscribed("BMW.DE") {
		t.Fatal("should not be subscribed to BMW.DE after unsubscribe")
	}
	if !c.IsSubscribed("SAP.DE") {
		t.Fatal("should still be subscribed to SAP.DE")
	}
}

func TestUnsubscribeWildcard(t *testing.T) {
	c := newTestClient(10)
	c.SubscribeAll()
	c.Subscribe([]string{"SAP.DE"})
	c.Unsubscribe([]string{"*"})
	if c.HasSubscriptions() {
		t.Fatal("wildcard unsubscribe should clear everything")
	}
}

func TestSubscribedSymbols(t *testing.T) {
	c := newTestClient(10)
	c.Subscribe([]string{"SAP.DE", "BMW.DE", "ALV.DE"})
	syms := c.SubscribedSymbols()
	if len(syms) != 3 {
		t.Fatalf("SubscribedSymbols returned %d, want 3", len(syms))
	}
	set := make(map[string]bool)
	for _, s := range syms {
		set[s] = true
	}
	for _, want := range []string{"SAP.DE", "BMW.DE", "ALV.DE"} {
		if !set[want] {
			t.Fatalf("%s missing from SubscribedSymbols", want)
		}
	}
}

func TestSubscribedSymbolsAllNil(t *testing.T) {
	c := newTestClient(10)
	c.SubscribeAll()
	if syms := c.SubscribedSymbols(); syms != nil {
		t.Fatalf("SubscribedSymbols should return nil for all-subscribed, got %v", syms)
	}
}

func TestSendBufferFull(t *testing.T) {
	c := newTestClient(2)
	ok1 := c.Send([]byte("msg1"))
	ok2 := c.Send([]byte("msg2"))
	ok3 := c.Send([]byte("msg3")) // should be dropped
	if !ok1 || !ok2 {
		t.Fatal("first two sends should succeed")
	}
	if ok3 {
		t.Fatal("third send should fail (buffer full)")
	}
	if dropped := atomic.LoadUint64(&c.Dropped); dropped != 1 {
		t.Fatalf("Dropped = %d, want 1", dropped)
	}
}

func TestUniqueIDs(t *testing.T) {
	c1 := newTestClient(10)
	c2 := newTestClient(10)
	c3 := newTestClient(10)
	if c1.ID == c2.ID || c2.ID == c3.ID || c1.ID == c3.ID {
		t.Fatalf("client IDs should be unique: %d, %d, %d", c1.ID, c2.ID, c3.ID)
	}
}

func TestCloseIdempotent(t *testing.T) {
	c := newTestClient(1)
	c.Close()
	c.Close()
	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestIsSubscribedDefault(t *testing.T) {
	c := newTestClient(10)
	if c.IsSubscribed("SAP.DE") || c.HasSubscriptions() {
		t.Fatal("new client should not be subscribed to any symbol")
	}
}
