package users

import "time"

// User is an application account. PasswordHash never leaves this package;
// the lockout fields are maintained elsewhere and only read here.
type User struct {
	ID                  string     `bson:"_id" json:"id"`
	Email               string     `bson:"email" json:"email"`
	Name                string     `bson:"name" json:"name"`
	PasswordHash        string     `bson:"passwordHash" json:"-"`
	IsActive            bool       `bson:"isActive" json:"is_active"`
	FailedLoginAttempts int        `bson:"failedLoginAttempts,omitempty" json:"-"`
	LockedUntil         *time.Time `bson:"lockedUntil,omitempty" json:"-"`
	CreatedAt           time.Time  `bson:"createdAt" json:"created_at"`
	UpdatedAt           time.Time  `bson:"updatedAt" json:"updated_at"`
}
