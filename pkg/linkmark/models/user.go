package models

import "time"

// DefaultTheme is the theme assigned to newly created users.
const DefaultTheme = "freshgreen"

// User represents an account. There is no password: possession of the
// generated key is the only credential, and users are created through the
// system-key-gated admin endpoint.
type User struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Key         string    `gorm:"uniqueIndex;not null" json:"key"`
	Username    string    `json:"username"`
	Theme       string    `gorm:"default:'freshgreen'" json:"theme"`
	CreatedDate time.Time `json:"created_date"`
}
