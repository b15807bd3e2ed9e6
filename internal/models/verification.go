package models

import "time"

// VerificationStatus represents the review state of an identity document.
type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "PENDING"
	VerificationStatusApproved VerificationStatus = "APPROVED"
	VerificationStatusRejected VerificationStatus = "REJECTED"
)

// VerificationRequest is a document-based identity verification submission.
// The document itself lives in external object storage; DocumentURL points
// at it and access is mediated through short-lived signed tokens.
type VerificationRequest struct {
	ID              string             `db:"id" json:"id"`
	UserID          string             `db:"user_id" json:"user_id"`
	DocumentType    string             `db:"document_type" json:"document_type"`
	DocumentURL     string             `db:"document_url" json:"-"`
	Status          VerificationStatus `db:"status" json:"status"`
	ReviewerID      *string            `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ReviewedAt      *time.Time         `db:"reviewed_at" json:"reviewed_at,omitempty"`
	RejectionReason *string            `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
}

// VerificationFilter provides filters for listing verification requests.
type VerificationFilter struct {
	UserID   string
	Status   VerificationStatus
	Page     int
	PageSize int
}
