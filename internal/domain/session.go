package domain

import (
	"regexp"
	"time"
)

// Server represents the game server instance being tracked.
// There is exactly one row per (ip, port) pair; it is resolved once at
// startup and only its current map changes afterwards.
type Server struct {
	ID  int64 `json:"id"`
	Map *Map  `json:"map,omitempty"`
}

// Map represents a game map, resolved or created by name.
type Map struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Player represents a durable player identity, stable across reconnects
// for the same steam id. Session points at the player's current session
// while they are connected.
type Player struct {
	ID        int64     `json:"id"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Session   *Session  `json:"session,omitempty"`
}

// Session represents one connect-to-disconnect interval on the server.
// A new row is created for every connect event.
type Session struct {
	ID int64 `json:"id"`
}

// Alias is a display-name snapshot recorded for a player. Consecutive
// identical aliases are deduplicated before insert.
type Alias struct {
	PlayerID  int64     `json:"player_id"`
	SessionID int64     `json:"session_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageKind distinguishes all-chat from team-only chat.
type MessageKind int

const (
	KindChat MessageKind = iota
	KindTeamChat
)

// hexEscapeRegex matches hex-escape artifacts (\x41, 0x41) that some game
// clients embed in display names
var hexEscapeRegex = regexp.MustCompile(`[0\\]x[0-9a-fA-F]{2}`)

// NormalizeAlias strips hex-escape artifacts from a raw display name.
func NormalizeAlias(name string) string {
	return hexEscapeRegex.ReplaceAllString(name, "")
}
