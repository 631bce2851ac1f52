package domain

import "time"

// Record is one row of the campaign query: a message sent under a sender ID
// together with the type that sender ID was registered as.
type Record struct {
	Message      string
	SenderID     string
	SenderIDType string // expected label
	CreatedAt    time.Time
}

// Mismatch is a record whose classified label disagrees with its
// registered sender-ID type.
type Mismatch struct {
	Date           time.Time `json:"date"`
	SenderID       string    `json:"sender_id"`
	Message        string    `json:"message"`
	ClassifiedType string    `json:"classified_type"`
	ExpectedType   string    `json:"expected_type"`
}
