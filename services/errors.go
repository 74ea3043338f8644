package services

import "errors"

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrEvidenceNotFound = errors.New("evidence not found")
	ErrMissingFields    = errors.New("profileId and questId required")
	ErrUnknownQuest     = errors.New("unknown quest")
	ErrNoImage          = errors.New("imageData or imageUrl required")
	ErrInvalidDecision  = errors.New("id and decision (approved|rejected) required")
	ErrEvidenceOpen     = errors.New("evidence for this quest is already pending or approved")
	ErrUploadsDisabled  = errors.New("image uploads are not configured")
)
