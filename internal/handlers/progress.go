package handlers

import (
	"log"

	"github.com/gofiber/websocket/v2"

	"github.com/voxacaptions/caption-pipeline/internal/batch"
)

// ProgressHandler streams batch events to WebSocket clients
type ProgressHandler struct {
	bus *batch.EventBus
}

// NewProgressHandler creates a new progress stream handler
func NewProgressHandler(bus *batch.EventBus) *ProgressHandler {
	return &ProgressHandler{bus: bus}
}

// Handle pushes events to one WebSocket connection. Replays buffered
// events first so a client connecting mid-batch still sees prior progress,
// then forwards live events in publish order.
func (h *ProgressHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	events, cancel := h.bus.Subscribe()
	defer cancel()

	var lastSeq int64
	for _, event := range h.bus.Since(0) {
		if err := c.WriteJSON(event); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
		lastSeq = event.Seq
	}

	for event := range events {
		// Skip anything already replayed from the buffer.
		if event.Seq <= lastSeq {
			continue
		}
		if err := c.WriteJSON(event); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
}
