package models

// User is the signed-in account. Authentication is a mock; nothing here is secret.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
