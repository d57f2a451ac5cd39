// ABOUTME: Account mutation request models and profile subset
// ABOUTME: Change-password and delete-account payloads plus the soft-delete flags

package models

import "time"

// ChangePasswordRequest is the body of POST /api/v1/account/change-password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// DeleteAccountRequest is the body of POST /api/v1/account/delete
type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// MessageData is the generic success payload for account mutations
type MessageData struct {
	Message string `json:"message"`
}

// DataResponse wraps every successful JSON response body
type DataResponse struct {
	Data interface{} `json:"data"`
}

// AccountProfile is the part of a user's profile row this service reads and writes.
// The profile itself is owned by the data store.
type AccountProfile struct {
	UserID    string     `json:"user_id"`
	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
