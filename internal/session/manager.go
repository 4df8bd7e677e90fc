package session

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ndrandal/marketsim/internal/engine"
	"github.com/ndrandal/marketsim/internal/wire"
)

// Market is the engine surface the stream reads from.
type Market interface {
	Instruments() []engine.Instrument
	Instrument(symbol string) (engine.Instrument, bool)
	SetSelected(symbol string)
}

// Manager handles client registration, subscriptions, and message fan-out.
type Manager struct {
	mu         sync.RWMutex
	clients    map[uint64]*Client
	market     Market
	log        zerolog.Logger
	bufferSize int

	connects atomic.Uint64
}

// NewManager creates a session manager.
func NewManager(market Market, bufferSize int, log zerolog.Logger) *Manager {
	return &Manager{
		clients:    make(map[uint64]*Client),
		market:     market,
		log:        log.With().Str("component", "session").Logger(),
		bufferSize: bufferSize,
	}
}

// Register adds a new client. Returns the client for further use.
func (m *Manager) Register(conn *websocket.Conn) *Client {
	c := NewClient(conn, m.bufferSize)

	m.mu.Lock()
	m.clients[c.ID] = c
	m.mu.Unlock()
	m.connects.Add(1)

	ev := m.log.Info().Uint64("client", c.ID)
	if conn != nil {
		ev = ev.Stringer("remote", conn.RemoteAddr())
	}
	ev.Msg("client connected")
	return c
}

// Unregister removes a client.
func (m *Manager) Unregister(c *Client) {
	m.mu.Lock()
	delete(m.clients, c.ID)
	m.mu.Unlock()

	c.Close()
	m.log.Info().
		Uint64("client", c.ID).
		Uint64("dropped", atomic.LoadUint64(&c.Dropped)).
		Msg("client disconnected")
}

// ResolveSymbols keeps the known symbols. all is true for "*".
func (m *Manager) ResolveSymbols(symbols []string) (known []string, all bool) {
	for _, s := range symbols {
		if s == "*" {
			return nil, true
		}
		if _, ok := m.market.Instrument(s); ok {
			known = append(known, s)
		}
	}
	return known, false
}

// BroadcastSnapshot sends quotes for subscribed symbols and every index
// value to each client with a subscription. Messages are encoded once and
// fanned out; a full client buffer drops the message.
func (m *Manager) BroadcastSnapshot(snap engine.Snapshot) {
	quotes := make(map[string][]byte, len(snap.Instruments))
	for _, in := range snap.Instruments {
		msg := wire.Quote(in, snap.Time, snap.Reason)
		if data, err := wire.EncodeJSON(&msg); err == nil {
			quotes[in.Symbol] = data
		}
	}
	indices := make([][]byte, 0, len(snap.Indices))
	for _, ix := range snap.Indices {
		msg := wire.IndexValue(ix, snap.Time, snap.Reason)
		if data, err := wire.EncodeJSON(&msg); err == nil {
			indices = append(indices, data)
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.clients {
		if !c.HasSubscriptions() {
			continue
		}
		for _, in := range snap.Instruments {
			if data, ok := quotes[in.Symbol]; ok && c.IsSubscribed(in.Symbol) {
				c.Send(data)
			}
		}
		for _, data := range indices {
			c.Send(data)
		}
	}
}

// BroadcastEvent sends a regime event to every connected client.
func (m *Manager) BroadcastEvent(ev engine.Event) {
	msg := wire.Regime(ev)
	m.broadcastAll(&msg)
}

// BroadcastStatus sends a lifecycle or selection change to every client.
func (m *Manager) BroadcastStatus(status, symbol string) {
	msg := wire.Status(status, symbol, time.Now())
	m.broadcastAll(&msg)
}

func (m *Manager) broadcastAll(msg *wire.Message) {
	data, err := wire.EncodeJSON(msg)
	if err != nil {
		m.log.Error().Err(err).Str("type", string(msg.Type)).Msg("encode broadcast")
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		c.Send(data)
	}
}

// SendToClient sends messages directly to a specific client (e.g., the
// instrument directory on subscribe).
func (m *Manager) SendToClient(c *Client, msgs []wire.Message) {
	for i := range msgs {
		data, err := wire.EncodeJSON(&msgs[i])
		if err != nil {
			continue
		}
		c.Send(data)
	}
}

// Directory returns directory messages for symbols, or for every
// instrument when all is set, in symbol order.
func (m *Manager) Directory(symbols []string, all bool) []wire.Message {
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}
	ins := m.market.Instruments()
	sort.Slice(ins, func(i, j int) bool { return ins[i].Symbol < ins[j].Symbol })

	now := time.Now()
	var msgs []wire.Message
	for _, in := range ins {
		if all || want[in.Symbol] {
			msgs = append(msgs, wire.Directory(in, now))
		}
	}
	return msgs
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// TotalConnects returns the number of clients registered since start.
func (m *Manager) TotalConnects() uint64 {
	return m.connects.Load()
}

// Dropped sums messages dropped for the currently connected clients.
func (m *Manager) Dropped() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n uint64
	for _, c := range m.clients {
		n += atomic.LoadUint64(&c.Dropped)
	}
	return n
}

// Subscriptions counts subscribers per explicitly subscribed symbol and,
// separately, the clients subscribed to every symbol.
func (m *Manager) Subscriptions() (perSymbol map[string]int, all int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	perSymbol = make(map[string]int)
	for _, c := range m.clients {
		if c.IsAllSubscribed() {
			all++
			continue
		}
		for _, s := range c.SubscribedSymbols() {
			perSymbol[s]++
		}
	}
	return perSymbol, all
}

// CloseAll disconnects every client.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
