package model

import "github.com/google/uuid"

type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusAnswered TicketStatus = "answered"
	TicketStatusClosed   TicketStatus = "closed"
)

type Ticket struct {
	Base
	UserID   uuid.UUID    `db:"user_id" json:"user_id"`
	Subject  string       `db:"subject" json:"subject"`
	Message  string       `db:"message" json:"message"`
	Status   TicketStatus `db:"status" json:"status"`
	Response *string      `db:"response" json:"response,omitempty"`
}

type CreateTicketRequest struct {
	Subject string `json:"subject" binding:"required" validate:"required,max=200"`
	Message string `json:"message" binding:"required" validate:"required,max=2000"`
}

type RespondTicketRequest struct {
	Response string `json:"response" binding:"required" validate:"required,max=2000"`
}
