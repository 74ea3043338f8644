package tracker

import "errors"

var (
	ErrUnknownQuest        = errors.New("unknown quest")
	ErrStepOutOfRange      = errors.New("step index out of range")
	ErrStepAutoVerified    = errors.New("step is auto-verified and cannot be toggled")
	ErrNotReadyToClaim     = errors.New("quest steps are not all complete")
	ErrEvidenceNotApproved = errors.New("quest evidence has not been approved")

	ErrEvidenceNotRequired = errors.New("quest does not take evidence")
	ErrAlreadyClaimed      = errors.New("quest reward already claimed")
	ErrReviewPending       = errors.New("evidence already awaiting review")
	ErrAlreadyApproved     = errors.New("evidence already approved")
	ErrSubmissionInFlight  = errors.New("evidence submission already in progress")
	ErrEmptyEvidence       = errors.New("evidence needs image data or an image url")

	ErrProfileUnavailable = errors.New("local profile could not be read")
	ErrStateUnavailable   = errors.New("local state could not be read")
)
