package domain

const (
	Transactional = "Transactional"
	Promotional   = "Promotional"

	// Unknown is assigned when the classifier could not label a message.
	Unknown = "Unknown"
)
