package domain

import "time"

// Roles
const (
	RoleUser  = "user"  // Regular investor
	RoleAdmin = "admin" // Back-office operator
)

// User Model
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                       // Primary key
	Email     string    `gorm:"size:191;uniqueIndex;not null" json:"email"` // Unique, lower-cased email
	FirstName string    `gorm:"size:100" json:"first_name"`                 // Given name
	LastName  string    `gorm:"size:100" json:"last_name"`                  // Family name
	Password  string    `gorm:"not null" json:"-"`                          // Hashed password
	Role      string    `gorm:"size:20;default:user" json:"role"`           // Role: user or admin
	CreatedAt time.Time `json:"created_at"`                                 // Registration time

	Wallet *Wallet `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"wallet,omitempty"` // One-to-one relationship with Wallet
}

// FullName joins first and last name
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
