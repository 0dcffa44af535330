// Package signaling implements the WebSocket signaling surface that brokers
// session setup between a broadcaster and its listeners.
//
// SDP and ICE payloads are relayed verbatim; this package models the routing
// protocol, not the WebRTC negotiation itself.
package signaling
