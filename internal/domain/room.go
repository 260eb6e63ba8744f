package domain

type (
	RoomName string
	RoomID   string
)

// RoomSettings is the persisted per-room configuration the realtime layer
// consults. Everything else about a room document belongs to the store.
type RoomSettings struct {
	AllowChat bool `json:"allowChat"`
}

type Room struct {
	ID       RoomID       `json:"id"`
	Name     RoomName     `json:"name"`
	Settings RoomSettings `json:"settings"`
}
