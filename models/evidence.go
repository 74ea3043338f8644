package models

import (
	"time"
)

// EvidenceStatus is the review state of a submission. There is no "none"
// status: a missing record means nothing was submitted yet.
type EvidenceStatus string

const (
	EvidencePending  EvidenceStatus = "pending"
	EvidenceApproved EvidenceStatus = "approved"
	EvidenceRejected EvidenceStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s EvidenceStatus) Valid() bool {
	switch s {
	case EvidencePending, EvidenceApproved, EvidenceRejected:
		return true
	}
	return false
}

// Evidence is the authoritative review record, owned by the review server.
// Only the reviewer role mutates Status after submission.
type Evidence struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProfileID string         `gorm:"index;not null" json:"profile_id"`
	QuestID   string         `gorm:"index;not null" json:"quest_id"`
	ImageURL  string         `gorm:"type:text" json:"image_url"`
	Notes     string         `gorm:"type:text" json:"notes"`
	Status    EvidenceStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	DecidedAt *time.Time     `json:"decided_at,omitempty"`
	Timestamps
}

// TableName pins the table name shared with existing deployments.
func (Evidence) TableName() string { return "quest_evidence" }

// EvidenceSummary is the client view of the latest record for a quest.
type EvidenceSummary struct {
	Status   EvidenceStatus `json:"status"`
	ID       string         `json:"id"`
	ImageURL string         `json:"imageUrl,omitempty"`
	Notes    string         `json:"notes,omitempty"`
}

// EvidenceSubmission is the payload a client sends for review. Exactly one of
// ImageData (a data: URL) or ImageURL is expected.
type EvidenceSubmission struct {
	ProfileID string `json:"profileId"`
	QuestID   string `json:"questId"`
	Notes     string `json:"notes,omitempty"`
	ImageData string `json:"imageData,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// EvidenceStatusResponse is the body of the status query.
type EvidenceStatusResponse struct {
	OK      bool                       `json:"ok"`
	ByQuest map[string]EvidenceSummary `json:"byQuest"`
}

// EvidenceSubmitResponse is the body returned after a submission.
type EvidenceSubmitResponse struct {
	OK       bool           `json:"ok"`
	ID       string         `json:"id"`
	Status   EvidenceStatus `json:"status"`
	ImageURL string         `json:"imageUrl,omitempty"`
}

// EvidenceListResponse is the body of the admin listing.
type EvidenceListResponse struct {
	OK    bool       `json:"ok"`
	Items []Evidence `json:"items"`
}

// EvidenceDecision is the reviewer's verdict on one record.
type EvidenceDecision struct {
	ID       string         `json:"id"`
	Decision EvidenceStatus `json:"decision"`
}
