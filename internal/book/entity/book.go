package entity

import "time"

// Book is a physical copy listed for lending. OwnerID is the current
// custodian, which changes every time a borrow request is resolved.
type Book struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Author    string    `db:"author" json:"author"`
	Publisher string    `db:"publisher" json:"publisher"`
	OwnerID   int64     `db:"owner_id" json:"owner_id"`
	Visible   bool      `db:"visible" json:"visible"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Filter narrows book listings. Zero values mean "any".
type Filter struct {
	OwnerID int64
	Visible *bool
	Limit   uint
	Offset  uint
}
