package chat

import (
	"time"

	"github.com/fdg312/diet-hub/internal/ai"
	"github.com/fdg312/diet-hub/internal/storage"
	"github.com/google/uuid"
)

type MessageDTO struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
	TZ      string `json:"tz,omitempty"`
}

// TodayDTO — сводка дня, на которую опирался ассистент.
type TodayDTO struct {
	Date              string         `json:"date"`
	Consumed          storage.Macros `json:"consumed"`
	TargetCalories    int            `json:"target_calories"`
	RemainingCalories int            `json:"remaining_calories"`
}

type SendMessageResponse struct {
	UserMessage      MessageDTO `json:"user_message"`
	AssistantMessage MessageDTO `json:"assistant_message"`
	Today            TodayDTO   `json:"today"`
}

// ListMessagesResponse — ответ GET /v1/chat/messages.
// Greeting и Today заполнены только на первой странице.
type ListMessagesResponse struct {
	Messages   []MessageDTO `json:"messages"`
	NextCursor *string      `json:"next_cursor,omitempty"`
	Greeting   string       `json:"greeting,omitempty"`
	Today      *TodayDTO    `json:"today,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func messageToDTO(msg storage.ChatMessage) MessageDTO {
	return MessageDTO{
		ID:        msg.ID,
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}

func todayToDTO(snapshot ai.DaySnapshot, target int) TodayDTO {
	return TodayDTO{
		Date:              snapshot.Date,
		Consumed:          snapshot.Consumed,
		TargetCalories:    target,
		RemainingCalories: max(0, target-int(snapshot.Consumed.Calories+0.5)),
	}
}
