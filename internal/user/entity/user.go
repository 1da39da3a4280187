package entity

import "time"

// DefaultLimit is the number of open borrow requests a new user may hold.
const DefaultLimit = 2

// User represents an account row in the `users` table.
// Limit and Points are the quota ledger's fields; only internal/quota writes Points.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        *string   `db:"email" json:"email,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	City         string    `db:"city" json:"city"`
	Phone        string    `db:"phone" json:"phone"`
	Limit        int       `db:"request_limit" json:"limit"`
	Points       int       `db:"points" json:"points"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// PublicView is what other users may see about an account.
type PublicView struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	City      string `json:"city"`
	Limit     int    `json:"limit"`
	Points    int    `json:"points"`
}

func (u *User) Public() PublicView {
	return PublicView{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		City:      u.City,
		Limit:     u.Limit,
		Points:    u.Points,
	}
}
