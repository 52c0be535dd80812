package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Platform tags the engagement channel a submission proves.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformYouTube   Platform = "youtube"
	PlatformGoogle    Platform = "google"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformVideo     Platform = "video"
)

// Platforms lists every known platform in display order.
var Platforms = []Platform{
	PlatformFacebook,
	PlatformYouTube,
	PlatformGoogle,
	PlatformTikTok,
	PlatformInstagram,
	PlatformVideo,
}

// Valid reports whether p is one of the known platforms.
func (p Platform) Valid() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// SubmissionStatus represents the review state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// ErrInvalidTransition is returned when a submission leaves a terminal state.
var ErrInvalidTransition = errors.New("submission is not pending")

// Submission is one proof of engagement, regardless of platform.
type Submission struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	Platform        Platform         `json:"platform"`
	ScreenshotRef   string           `json:"screenshot_ref,omitempty"`
	Fingerprint     *string          `json:"fingerprint,omitempty"` // nil when the platform skips dedup
	VideoID         *string          `json:"video_id,omitempty"`
	Status          SubmissionStatus `json:"status"`
	Amount          int64            `json:"amount"` // Minor units, fixed at creation
	RejectionReason *string          `json:"rejection_reason,omitempty"`
	ReviewedBy      *uuid.UUID       `json:"reviewed_by,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	ReviewedAt      *time.Time       `json:"reviewed_at,omitempty"`
}

// IsPending returns true while the submission awaits review.
func (s *Submission) IsPending() bool {
	return s.Status == SubmissionStatusPending
}

// CountsTowardLimit returns true for submissions inside the rolling rate limit.
func (s *Submission) CountsTowardLimit() bool {
	return s.Status == SubmissionStatusPending || s.Status == SubmissionStatusApproved
}

// Approve moves a pending submission to approved.
func (s *Submission) Approve(actor *uuid.UUID, at time.Time) error {
	if !s.IsPending() {
		return ErrInvalidTransition
	}
	s.Status = SubmissionStatusApproved
	s.ReviewedBy = actor
	s.ReviewedAt = &at
	return nil
}

// Reject moves a pending submission to rejected, keeping the reason if given.
func (s *Submission) Reject(actor *uuid.UUID, reason string, at time.Time) error {
	if !s.IsPending() {
		return ErrInvalidTransition
	}
	s.Status = SubmissionStatusRejected
	if reason != "" {
		s.RejectionReason = &reason
	}
	s.ReviewedBy = actor
	s.ReviewedAt = &at
	return nil
}

// RateWindow summarizes a user's counted submissions inside the rolling window.
type RateWindow struct {
	Count  int
	Oldest *time.Time
}
