package otp

import "time"

// VerificationRequest is the single authoritative code for a subject and
// action. Issuing a new code deletes the previous row.
type VerificationRequest struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	SubjectID uint   `gorm:"not null;uniqueIndex:idx_verification_subject_action" json:"subject_id"`
	Action    Action `gorm:"size:32;not null;uniqueIndex:idx_verification_subject_action" json:"action"`
	Code      string `gorm:"size:6;not null" json:"-"`
	Recipient string `gorm:"size:255;not null" json:"recipient"`
	// Payload carries data applied on success, e.g. the new address of an email change.
	Payload    string     `gorm:"size:255" json:"-"`
	Device     string     `gorm:"size:255" json:"device,omitempty"`
	Attempts   int        `gorm:"not null;default:0" json:"attempts"`
	Consumed   bool       `gorm:"not null;default:false;index" json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (VerificationRequest) TableName() string {
	return "verification_requests"
}

// ExpiresAt is the first instant at which the code is no longer accepted.
func (r *VerificationRequest) ExpiresAt(ttl time.Duration) time.Time {
	return r.CreatedAt.Add(ttl)
}
