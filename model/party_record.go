package model

import (
	"time"

	"gorm.io/datatypes"
)

// PartyRecord is a durable snapshot of one party, written asynchronously
// after each in-memory mutation commits. Data holds the full party JSON;
// the row is replaced wholesale on every save (latest-wins).
type PartyRecord struct {
	PartyID   string         `gorm:"primaryKey;size:36" json:"party_id"`
	Data      datatypes.JSON `json:"data"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
