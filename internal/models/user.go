package models

import (
	"fmt"
	"strconv"
)

// Kind identifies the namespace an entity record lives in.
type Kind string

const (
	KindUser  Kind = "user"
	KindGroup Kind = "group"
	KindAdmin Kind = "admin"
)

// Kinds lists every namespace kept in the store.
var Kinds = []Kind{KindUser, KindGroup, KindAdmin}

func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindGroup, KindAdmin:
		return true
	}
	return false
}

// Key returns the store key of the record with the given id, e.g. "user:42".
func (k Kind) Key(id int64) string {
	return string(k) + ":" + strconv.FormatInt(id, 10)
}

// Pattern returns the SCAN pattern matching the whole namespace.
func (k Kind) Pattern() string {
	return string(k) + ":*"
}

// Label is the capitalised kind used in chat texts.
func (k Kind) Label() string {
	switch k {
	case KindUser:
		return "User"
	case KindGroup:
		return "Group"
	case KindAdmin:
		return "Admin"
	}
	return string(k)
}

// Entity is a User, Group or Admin record. The record is always written whole:
// saving an entity with an existing id replaces the stored value.
type Entity struct {
	ID         int64  `json:"id"`
	Kind       Kind   `json:"-"` // восстанавливается из ключа при чтении
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Title      string `json:"title,omitempty"`
	IsVerified bool   `json:"isVerified"`
}

func (e *Entity) Key() string {
	return e.Kind.Key(e.ID)
}

// Mention returns "@username" when known and "Unknown" otherwise.
func (e *Entity) Mention() string {
	if e.Username != "" {
		return "@" + e.Username
	}
	return "Unknown"
}

// DisplayName is the most readable name available for the entity.
func (e *Entity) DisplayName() string {
	switch {
	case e.Title != "":
		return e.Title
	case e.Username != "":
		return "@" + e.Username
	case e.FirstName != "" && e.LastName != "":
		return e.FirstName + " " + e.LastName
	case e.FirstName != "":
		return e.FirstName
	}
	return strconv.FormatInt(e.ID, 10)
}

func (e *Entity) String() string {
	status := "pending"
	if e.IsVerified {
		status = "active"
	}
	return fmt.Sprintf("%s %d (%s) %s", e.Kind, e.ID, e.DisplayName(), status)
}

// Decision is the outcome of a verification check.
type Decision int

const (
	Allowed Decision = iota
	NeedsRegistration
	Pending
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case NeedsRegistration:
		return "needs_registration"
	case Pending:
		return "pending"
	}
	return "unknown"
}
