/**
 * @description
 * This file defines the identity records the credit-service reads. Profiles are
 * written by the onboarding/KYC flow; this service only ever reads them.
 */

package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// KYCStatus is the identity-verification state stored on a profile.
type KYCStatus string

const (
	KYCNotStarted KYCStatus = "not_started"
	KYCPending    KYCStatus = "pending"
	KYCCompleted  KYCStatus = "completed"
)

// Profile mirrors a row of the `profiles` table.
type Profile struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	Email          string     `json:"email"`
	FullName       string     `json:"full_name"`
	Phone          *string    `json:"phone,omitempty"`
	DateOfBirth    *string    `json:"date_of_birth,omitempty"`
	Address        *string    `json:"address,omitempty"`
	KYCStatus      KYCStatus  `json:"kyc_status"`
	KYCCompletedAt *time.Time `json:"kyc_completed_at,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// KYCVerified reports whether identity verification has completed. A nil
// profile is treated as unverified.
func (p *Profile) KYCVerified() bool {
	if p == nil {
		return false
	}
	return NormalizeKYCStatus(string(p.KYCStatus)) == KYCCompleted
}

// NormalizeKYCStatus maps a raw column value onto a known status. Null and
// unrecognised values read as not started.
func NormalizeKYCStatus(raw string) KYCStatus {
	switch KYCStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case KYCCompleted:
		return KYCCompleted
	case KYCPending:
		return KYCPending
	default:
		return KYCNotStarted
	}
}
