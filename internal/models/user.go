package models

import "time"

// User is an account known to the identity provider.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HistoryDoc is a history record mirrored to the remote store, tagged with
// its owner. DocID is assigned by the store and is distinct from Record.ID.
type HistoryDoc struct {
	DocID  string        `json:"docId"`
	UserID string        `json:"userId"`
	Record HistoryRecord `json:"record"`
}
