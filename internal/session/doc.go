// Package session keeps a chat room session alive across dropped connections.
//
// The Manager owns the connection status, the identity of the last room the
// user entered, a bounded reconnect counter and the party client handle.
// When the service closes the socket while a room identity is held, the
// Manager schedules a retry with capped exponential backoff (1s, 2s, 4s),
// dials a fresh handle and rejoins the same room under the same display name
// and icon. After three failed attempts it stops and reports that a reload
// is required.
//
// Inbound frames are decoded once into a tagged value and applied in arrival
// order. Callbacks from a replaced handle are discarded.
package session
