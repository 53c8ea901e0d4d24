package model

// Contact is one entry in the operator's contact pool.
// The pool is read-only within the console; it is maintained elsewhere.
type Contact struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Phone       string   `json:"phone"`
	Email       string   `json:"email,omitempty"`
	CategoryIDs []string `json:"category_ids,omitempty"`
}

// Sender is a messaging identity the operator can dispatch from.
// Only connected senders are eligible during audience selection.
type Sender struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Phone     string `json:"phone"`
	Connected bool   `json:"connected"`
}

// Template is a reusable message body with {variable} placeholders.
type Template struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Body string `json:"body"`
}

// Category groups contacts for audience filtering.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
