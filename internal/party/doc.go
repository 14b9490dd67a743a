// Package party implements the websocket client for the room-based chat service.
//
// The client:
//   - Connects asynchronously and reports OnReady / OnClosed through Handlers
//   - Correlates createSession / joinSession requests with their replies by callback ID
//   - Delivers every other frame to OnMessage in arrival order from one goroutine
//   - Sends keepAlive frames and treats a silent peer as a closed connection
package party
