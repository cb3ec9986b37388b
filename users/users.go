package users

import "time"

// User is a principal known to the hub. Human users authenticate through the
// hub's login collaborator; service users are machine accounts used for
// server-to-server calls and never log in interactively.
type User struct {
	ID       string    `json:"id,omitempty"`       // Unique identifier for the user
	Email    string    `json:"email,omitempty"`    // User's email address
	Username string    `json:"username,omitempty"` // Unique username
	Picture  string    `json:"picture,omitempty"`  // Optional avatar URL
	Service  bool      `json:"service,omitempty"`  // Machine account marker
	Created  time.Time `json:"created,omitempty"`  // When the account was registered
}
