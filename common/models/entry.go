package models

import (
	"fmt"
	"time"
)

type EntryStatus string

const (
	EntryStatusActive  EntryStatus = "ACTIVE"
	EntryStatusWaiting EntryStatus = "WAITING"
)

func (s EntryStatus) Valid() bool {
	return s == EntryStatusActive || s == EntryStatusWaiting
}

type Entry struct {
	EntryId      string      `dynamodbav:"entry_id" json:"id"`
	Name         string      `dynamodbav:"name" json:"name"`
	RegisteredAt time.Time   `dynamodbav:"registered_at" json:"registered_at"`
	Position     int         `dynamodbav:"position" json:"position"`
	Status       EntryStatus `dynamodbav:"status" json:"status"`

	PK string `dynamodbav:"PK" json:"-"`
	SK string `dynamodbav:"SK" json:"-"`
}

// Key handlers
func EntrySK(entryId string) string {
	return fmt.Sprintf("%s%s", EntrySKPrefix(), entryId)
}

func EntrySKPrefix() string {
	return "ENTRY#"
}
