package models

import "time"

// StateEntry is a single persisted key in the local state store. Value holds
// the JSON encoding of the stored data.
type StateEntry struct {
	Key       string    `json:"key" gorm:"type:text;primaryKey;column:key"`
	Value     string    `json:"value" gorm:"type:text;not null;column:value"`
	UpdatedAt time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

