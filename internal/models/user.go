package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// UserRole represents the available roles.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// Theme is the dashboard colour scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// UserPreferences is stored as JSONB alongside the profile.
type UserPreferences struct {
	Theme         Theme `json:"theme"`
	Notifications bool  `json:"notifications"`
}

// DefaultPreferences returns the preferences of a newly provisioned user.
func DefaultPreferences() UserPreferences {
	return UserPreferences{Theme: ThemeSystem, Notifications: true}
}

// Value implements driver.Valuer.
func (p UserPreferences) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *UserPreferences) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = DefaultPreferences()
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported preferences type %T", src)
	}
}

// User is the profile of an authenticated user.
type User struct {
	ID          string          `db:"id" json:"id"`
	Email       string          `db:"email" json:"email"`
	Phone       string          `db:"phone" json:"phone"`
	Role        UserRole        `db:"role" json:"role"`
	Username    string          `db:"username" json:"username"`
	FullName    string          `db:"full_name" json:"fullname"`
	Address     string          `db:"address" json:"address"`
	Preferences UserPreferences `db:"preferences" json:"preferences"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
