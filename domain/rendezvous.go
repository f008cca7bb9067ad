// Package domain contains core concepts of the rendezvous relay.
// No runtime, network, or UI logic should be added here.
package domain

import "strings"

// RoomID identifies a room. Caller-supplied, trimmed, case-sensitive.
type RoomID string

// ClientID identifies one session. Server-generated, unique process-wide.
type ClientID string

// MaxDisplayNameLen caps caller-supplied display names, counted in runes.
const MaxDisplayNameLen = 64

// Peer is one row of the snapshot returned to a joining client.
type Peer struct {
	ClientID ClientID
	Name     string
}

// NormalizeRoomID trims surrounding whitespace. An empty result means the
// caller never supplied a usable room id.
func NormalizeRoomID(raw string) RoomID {
	return RoomID(strings.TrimSpace(raw))
}

// NormalizeDisplayName trims and caps a display name. No uniqueness or
// character filtering beyond that.
func NormalizeDisplayName(raw string) string {
	name := strings.TrimSpace(raw)
	runes := []rune(name)
	if len(runes) > MaxDisplayNameLen {
		return string(runes[:MaxDisplayNameLen])
	}
	return name
}
