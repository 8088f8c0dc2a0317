package domain

import (
	"errors"
	"time"
)

var ErrAccountNotFound = errors.New("portal account not found")

// PortalAccount is a portal login that does not live in the directory.
type PortalAccount struct {
	Username     string    `bson:"_id"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

// LoginRecord is one row of portal login history.
type LoginRecord struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	Date      string    `bson:"date"`
	Month     int       `bson:"month"`
	IPAddress string    `bson:"ip_address"`
	CreatedAt time.Time `bson:"created_at"`
}
