package dto

import "time"

type NetworkEventRequest struct {
	URL        string     `json:"url" binding:"required,url,max=2048"`
	StatusCode int        `json:"status_code" binding:"required,min=100,max=599"`
	Body       string     `json:"body"`
	ObservedAt *time.Time `json:"observed_at,omitempty"`
}

type NetworkEventResponse struct {
	MessageID string `json:"message_id"`
}
