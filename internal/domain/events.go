package domain

import "time"

// Event types for the tracker event loop and WebSocket broadcast
const (
	EventMapStart         = "map_start"
	EventClientAuthorized = "client_authorized"
	EventClientDisconnect = "client_disconnect"
	EventChat             = "chat"
)

// Event is a single engine notification delivered to the tracker.
type Event struct {
	Type      string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// MapStartData is sent when the server loads a new map
type MapStartData struct {
	Name string `json:"name"`
}

// ClientAuthorizedData is sent once the engine has verified a client's
// steam identity; Slot is the engine's reusable client number.
type ClientAuthorizedData struct {
	Slot    int    `json:"slot"`
	SteamID uint64 `json:"steam_id"`
	IP      string `json:"ip"`
	Name    string `json:"name"`
}

// ClientDisconnectData is sent when a client leaves
type ClientDisconnectData struct {
	Slot int `json:"slot"`
}

// ChatData carries one chat message
type ChatData struct {
	Slot     int    `json:"slot"`
	Text     string `json:"text"`
	TeamOnly bool   `json:"team_only"`
}
