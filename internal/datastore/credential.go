package datastore

import (
	"time"

	"golang.org/x/oauth2"

	"github.com/tphakala/zoolog/internal/appctx"
)

// Credential is the signed-in backend account and its bearer token
type Credential struct {
	ID          uint   `gorm:"primaryKey"`
	Username    string `gorm:"uniqueIndex;not null"`
	UserID      string
	Name        string
	Email       string
	Role        string `gorm:"index"`
	AccessToken string `gorm:"not null"`
	TokenType   string
	Expiry      time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName pins the table name
func (Credential) TableName() string { return "credentials" }

// Valid reports whether the token is present and unexpired at now.
func (c *Credential) Valid(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return c.Expiry.IsZero() || now.Before(c.Expiry)
}

// CanLogObservations reports whether the stored role may create daily logs.
func (c *Credential) CanLogObservations() bool {
	return c != nil && appctx.Role(c.Role).CanLogObservations()
}

// Token returns the stored oauth2 token
func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: c.AccessToken,
		TokenType:   c.TokenType,
		Expiry:      c.Expiry,
	}
}

// User returns the profile for the application context
func (c *Credential) User() *appctx.User {
	return &appctx.User{
		ID:    c.UserID,
		Email: c.Email,
		Name:  c.Name,
		Role:  appctx.Role(c.Role),
	}
}

// NewCredential combines a login result into a storable credential
func NewCredential(username string, tok *oauth2.Token, user *appctx.User) *Credential {
	c := &Credential{
		Username:    username,
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Expiry:      tok.Expiry,
	}
	if user != nil {
		c.UserID = user.ID
		c.Name = user.Name
		c.Email = user.Email
		c.Role = string(user.Role)
	}
	return c
}
