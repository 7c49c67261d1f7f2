// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"slices"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type UserID string

type User struct {
	ID                UserID `json:"id"`
	Username          string `json:"username"`
	PreferredLanguage string `json:"preferredLanguage"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(username, preferredLanguage string) (*User, error) {
	u := &User{
		ID:                UserID(uuid.NewString()),
		PreferredLanguage: preferredLanguage,
	}
	if err := u.SetUsername(username); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) SetUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Username = username
	return nil
}

// LanguageSupported reports whether lang is one of supported.
// Unsupported languages are still accepted by callers; they only warn.
func LanguageSupported(lang string, supported []string) bool {
	return slices.Contains(supported, lang)
}
