package models

import (
	"slices"
	"time"
)

// Roster is a read-only snapshot of both lists, each ordered by position.
type Roster struct {
	Active  []Entry `json:"active"`
	Waiting []Entry `json:"waiting"`
}

// Clone copies both lists so the result shares no backing arrays with r.
func (r *Roster) Clone() *Roster {
	return &Roster{
		Active:  slices.Clone(r.Active),
		Waiting: slices.Clone(r.Waiting),
	}
}

func (r *Roster) Counts() (active, waiting int) {
	return len(r.Active), len(r.Waiting)
}

// Cancellation describes what a cancel changed.
type Cancellation struct {
	Removed  Entry  `json:"removed"`
	Promoted *Entry `json:"promoted,omitempty"`
}

// RosterMeta guards concurrent writers on stores without multi-statement
// transactions. Every committed write bumps Version.
type RosterMeta struct {
	Version   int64     `dynamodbav:"version"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`

	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
}

// Key handlers
func RosterPK() string {
	return "ROSTER#DAILY"
}

func MetaSK() string {
	return "META"
}
