package events

import "time"

// Event type codes published to the platform bus.
const (
	TypeRoomCreated   = "ROOM_CREATED"
	TypeViewerJoined  = "VIEWER_JOINED"
	TypeViewerLeft    = "VIEWER_LEFT"
	TypeTurnCompleted = "TURN_COMPLETED"
)

func NewRoomCreated(roomID, personaID string) Event {
	return BaseEvent{
		Type: TypeRoomCreated,
		Data: map[string]interface{}{
			"room_id":    roomID,
			"persona_id": personaID,
		},
		OccurredAt: time.Now(),
	}
}

func NewViewerJoined(roomID string, onlineCount int) Event {
	return BaseEvent{
		Type: TypeViewerJoined,
		Data: map[string]interface{}{
			"room_id":      roomID,
			"online_count": onlineCount,
		},
		OccurredAt: time.Now(),
	}
}

func NewViewerLeft(roomID string, onlineCount int) Event {
	return BaseEvent{
		Type: TypeViewerLeft,
		Data: map[string]interface{}{
			"room_id":      roomID,
			"online_count": onlineCount,
		},
		OccurredAt: time.Now(),
	}
}

func NewTurnCompleted(roomID string, userLen, replyLen int, audio bool) Event {
	return BaseEvent{
		Type: TypeTurnCompleted,
		Data: map[string]interface{}{
			"room_id":      roomID,
			"message_len":  userLen,
			"reply_len":    replyLen,
			"audio_pushed": audio,
		},
		OccurredAt: time.Now(),
	}
}
