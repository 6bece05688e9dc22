package services

import (
	"context"
	"sync"
	"time"

	"frontdesk-backend-go/internal/models"

	"github.com/gorilla/websocket"
)

const (
	EventDeliveryRegistered = "delivery.registered"
	EventDeliveryPickedUp   = "delivery.picked_up"
)

type DeliveryEvent struct {
	Type     string                      `json:"type"`
	Delivery models.DeliveryWithResident `json:"delivery"`
	At       time.Time                   `json:"at"`
}

type EventPublisher interface {
	Publish(condominiumID string, event DeliveryEvent)
}

type scopedEvent struct {
	condominiumID string
	event         DeliveryEvent
}

// EventHub fans delivery events out to the websocket clients of the same
// condominium. Publish never blocks; events are dropped when the queue is full.
type EventHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]string
	ch      chan scopedEvent
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients: map[*websocket.Conn]string{},
		ch:      make(chan scopedEvent, 64),
	}
}

func (h *EventHub) Run(ctx context.Context) {
	for {
		select {
		case item := <-h.ch:
			h.mu.RLock()
			targets := make([]*websocket.Conn, 0, len(h.clients))
			for conn, condo := range h.clients {
				if condo == item.condominiumID {
					targets = append(targets, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range targets {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(item.event); err != nil {
					h.Remove(conn)
					_ = conn.Close()
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *EventHub) Publish(condominiumID string, event DeliveryEvent) {
	select {
	case h.ch <- scopedEvent{condominiumID: condominiumID, event: event}:
	default:
	}
}

func (h *EventHub) Add(conn *websocket.Conn, condominiumID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = condominiumID
}

func (h *EventHub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
