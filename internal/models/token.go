package models

import (
	"time"
)

// TokenInfo is a login session as kept in Redis.
type TokenInfo struct {
	Token           string    `json:"token"`
	StudentID       int64     `json:"student_id"`
	Role            Role      `json:"role"`
	HouseID         int64     `json:"house_id,omitempty"`
	RequestCount    int       `json:"request_count"`
	LastRequestTime time.Time `json:"last_request_dttm_utc"`
	CreatedTime     time.Time `json:"created_dttm_utc"`
}
