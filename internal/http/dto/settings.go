package dto

import "encoding/json"

type PutSettingRequest struct {
	Value      json.RawMessage `json:"value" binding:"required"`
	TTLSeconds int             `json:"ttl_seconds" binding:"min=0"`
}

type SettingResponse struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}
