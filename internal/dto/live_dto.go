package dto

import "time"

type PersonaInfoResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
}

type RoomInfoResponse struct {
	RoomID      string `json:"room_id"`
	PersonaID   string `json:"persona_id"`
	PersonaName string `json:"persona_name"`
	OnlineCount int    `json:"online_count"`
}

type DanmakuRequest struct {
	Message   string `json:"message" validate:"required"`
	SessionID string `json:"session_id"`
	PersonaID string `json:"persona_id"`
}

type DanmakuResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	AudioB64  string `json:"audio_b64,omitempty"`
}

type ChatMessageData struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryResponse struct {
	RoomID   string            `json:"room_id"`
	Total    int64             `json:"total"`
	Messages []ChatMessageData `json:"messages"`
}
