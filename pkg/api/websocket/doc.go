// Package websocket provides real-time event streaming via WebSocket.
//
// Clients connect to /api/v1/instances/:id/ws to receive the lifecycle
// events of one service chain instance as JSON text messages.
package websocket
