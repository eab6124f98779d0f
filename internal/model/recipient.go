// internal/model/recipient.go
package model

// Recipient is one addressable contact supplied by the contact directory.
type Recipient struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Email   string `db:"email" json:"email,omitempty"`
	Phone   string `db:"phone" json:"phone,omitempty"`
	Company string `db:"company" json:"company,omitempty"`
}
