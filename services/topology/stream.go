// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package topology

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianAtlas/services/topology/telemetry"
)

const (
	// streamSendBuffer is the per-client outbound queue. A client that
	// falls this far behind is disconnected rather than blocking the hub.
	streamSendBuffer = 16

	// streamWriteWait bounds one websocket write.
	streamWriteWait = 10 * time.Second

	// streamPongWait is how long a client may stay silent before the
	// read pump gives up. Pings go out at a third of this.
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait / 3

	// streamEventsPerSecond caps the delta rate delivered to one client.
	// Bursts cover churn spikes; sustained overload drops to the cap.
	streamEventsPerSecond = 10
	streamEventBurst      = 30
)

// streamClient is one connected websocket subscriber.
type streamClient struct {
	conn    *websocket.Conn
	send    chan StreamEvent
	limiter *rate.Limiter
}

// Hub fans StreamEvents out to connected websocket clients.
//
// Thread Safety: Register, Unregister, and Broadcast are safe for
// concurrent use; they hand off to the Run goroutine via channels.
type Hub struct {
	log     *slog.Logger
	metrics *telemetry.Metrics

	register   chan *streamClient
	unregister chan *streamClient
	broadcast  chan StreamEvent
	clients    map[*streamClient]bool

	done chan struct{}
}

// NewHub creates a Hub. Call Run to start dispatching.
func NewHub(log *slog.Logger, metrics *telemetry.Metrics) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log,
		metrics:    metrics,
		register:   make(chan *streamClient),
		unregister: make(chan *streamClient),
		broadcast:  make(chan StreamEvent, 64),
		clients:    make(map[*streamClient]bool),
		done:       make(chan struct{}),
	}
}

// Run dispatches events until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.setClientGauge()
			return
		case client := <-h.register:
			h.clients[client] = true
			h.setClientGauge()
		case client := <-h.unregister:
			if h.clients[client] {
				delete(h.clients, client)
				close(client.send)
				h.setClientGauge()
			}
		case event := <-h.broadcast:
			for client := range h.clients {
				if !client.limiter.Allow() {
					continue
				}
				select {
				case client.send <- event:
				default:
					// Slow consumer. Drop it; it can reconnect and
					// resync from a fresh snapshot.
					delete(h.clients, client)
					close(client.send)
					h.setClientGauge()
				}
			}
		}
	}
}

// Broadcast queues an event for every connected client. Events are
// dropped once the hub has shut down.
func (h *Hub) Broadcast(event StreamEvent) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	}
}

func (h *Hub) setClientGauge() {
	if h.metrics != nil {
		h.metrics.StreamClients.Set(float64(len(h.clients)))
	}
}

// Serve attaches conn to the hub: it sends snapshot first, then streams
// deltas until the client disconnects or the hub shuts down. It blocks
// for the lifetime of the connection.
func (h *Hub) Serve(conn *websocket.Conn, snapshot StreamEvent) {
	client := &streamClient{
		conn:    conn,
		send:    make(chan StreamEvent, streamSendBuffer),
		limiter: rate.NewLimiter(rate.Limit(streamEventsPerSecond), streamEventBurst),
	}
	client.send <- snapshot

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(client)
	h.readPump(client)
}

// readPump discards inbound frames and detects disconnects. The stream
// is one-directional; clients only listen.
func (h *Hub) readPump(client *streamClient) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("stream client read error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(client *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := client.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
