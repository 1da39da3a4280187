package entity

import "time"

// State is derived from the stored row; it is not persisted.
type State string

const (
	StatePending  State = "pending"
	StateAccepted State = "accepted"
)

// Request is one user's intent to borrow a book from its current owner.
// The row exists only while the request is open; resolving it deletes it.
type Request struct {
	ID          int64      `db:"id" json:"id"`
	BookID      int64      `db:"book_id" json:"book_id"`
	ReqUserID   int64      `db:"req_user_id" json:"req_user_id"`
	OwnerUserID int64      `db:"owner_user_id" json:"owner_user_id"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	AcceptDate  *time.Time `db:"accept_date" json:"accept_date,omitempty"`
}

// State reports Pending until an accept date is set.
func (r *Request) State() State {
	if r.AcceptDate != nil {
		return StateAccepted
	}
	return StatePending
}

// CreatePayload is the input to the create operation. OwnerUserID may be
// zero, in which case the book's current owner is captured.
type CreatePayload struct {
	BookID      int64 `json:"book_id"`
	ReqUserID   int64 `json:"req_user_id"`
	OwnerUserID int64 `json:"owner_user_id"`
}

// UpdatePayload lists the mutable fields. Nil means "leave unchanged".
type UpdatePayload struct {
	AcceptDate *time.Time `json:"accept_date"`
}

// Filter narrows request listings. Zero values mean "any".
type Filter struct {
	OwnerUserID int64
	ReqUserID   int64
	BookID      int64
	Limit       uint
	Offset      uint
}
