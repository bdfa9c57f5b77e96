package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"bustrack/internal/domain"
)

// Client is one websocket subscriber with its set of watched buses.
type Client struct {
	ID    string
	Send  chan []byte
	buses map[string]struct{}
	mu    sync.RWMutex
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:    id,
		Send:  make(chan []byte, bufferSize),
		buses: make(map[string]struct{}),
	}
}

func (c *Client) AddBuses(busNumbers []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, number := range busNumbers {
		c.buses[number] = struct{}{}
	}
}

func (c *Client) RemoveBuses(busNumbers []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, number := range busNumbers {
		delete(c.buses, number)
	}
}

func (c *Client) WatchedBuses() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	buses := make([]string, 0, len(c.buses))
	for number := range c.buses {
		buses = append(buses, number)
	}
	return buses
}

// Hub fans live position deltas out to clients subscribed to the
// affected buses.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	busClients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan []domain.PositionDelta

	onFanout func(messages int)
	logger   *slog.Logger
}

func NewHub(onFanout func(messages int), logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		busClients: make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan []domain.PositionDelta, 256),
		onFanout:   onFanout,
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.ID, "total", len(h.clients))

		case client := <-h.unregister:
			h.removeClient(client)

		case deltas := <-h.broadcast:
			h.fanout(deltas)
		}
	}
}

func (h *Hub) Subscribe(client *Client, busNumbers []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.AddBuses(busNumbers)

	for _, number := range busNumbers {
		if h.busClients[number] == nil {
			h.busClients[number] = make(map[*Client]struct{})
		}
		h.busClients[number][client] = struct{}{}
	}
}

func (h *Hub) Unsubscribe(client *Client, busNumbers []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.RemoveBuses(busNumbers)

	for _, number := range busNumbers {
		if h.busClients[number] != nil {
			delete(h.busClients[number], client)
			if len(h.busClients[number]) == 0 {
				delete(h.busClients, number)
			}
		}
	}
}

// Broadcast queues deltas for fan-out, dropping the batch rather than
// blocking the caller when the hub is saturated.
func (h *Hub) Broadcast(deltas []domain.PositionDelta) {
	if len(deltas) == 0 {
		return
	}
	select {
	case h.broadcast <- deltas:
	default:
		h.logger.Warn("broadcast channel full, dropping deltas", "count", len(deltas))
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type DeltaMessage struct {
	Type    string       `json:"type"`
	Payload DeltaPayload `json:"payload"`
}

type DeltaPayload struct {
	Updates []*domain.BusPosition `json:"updates,omitempty"`
	Removes []string              `json:"removes,omitempty"`
}

func (h *Hub) fanout(deltas []domain.PositionDelta) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clientDeltas := make(map[*Client][]domain.PositionDelta)

	for _, d := range deltas {
		if clients, ok := h.busClients[d.BusNumber]; ok {
			for client := range clients {
				clientDeltas[client] = append(clientDeltas[client], d)
			}
		}
	}

	sent := 0
	for client, ds := range clientDeltas {
		msg := buildDeltaMessage(ds)
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}

		select {
		case client.Send <- data:
			sent++
		default:
			h.logger.Debug("client send buffer full", "client_id", client.ID)
		}
	}

	if h.onFanout != nil && sent > 0 {
		h.onFanout(sent)
	}
}

func buildDeltaMessage(deltas []domain.PositionDelta) DeltaMessage {
	var updates []*domain.BusPosition
	var removes []string

	for _, d := range deltas {
		switch d.Type {
		case domain.DeltaUpdate:
			updates = append(updates, d.Position)
		case domain.DeltaRemove:
			removes = append(removes, d.BusNumber)
		}
	}

	return DeltaMessage{
		Type: "delta",
		Payload: DeltaPayload{
			Updates: updates,
			Removes: removes,
		},
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	for _, number := range client.WatchedBuses() {
		if h.busClients[number] != nil {
			delete(h.busClients[number], client)
			if len(h.busClients[number]) == 0 {
				delete(h.busClients, number)
			}
		}
	}

	delete(h.clients, client)
	close(client.Send)
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
	h.busClients = make(map[string]map[*Client]struct{})
}
