package ws

const (
	EventTranscription = "transcription"
	EventRoomClosed    = "room.closed"
)

// Event is the frame subscribers receive. The baseline protocol defines a
// single type, "transcription"; "room.closed" is sent once when a room is
// torn down under a subscriber.
type Event struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Broadcast scopes an event to a room. The room code travels out of band;
// the wire frame carries only type and text.
type Broadcast struct {
	RoomCode string
	Event    *Event
}

func NewTranscription(roomCode, text string) *Broadcast {
	return &Broadcast{
		RoomCode: roomCode,
		Event: &Event{
			Type: EventTranscription,
			Text: text,
		},
	}
}

func NewRoomClosed(roomCode string) *Broadcast {
	return &Broadcast{
		RoomCode: roomCode,
		Event: &Event{
			Type: EventRoomClosed,
		},
	}
}
