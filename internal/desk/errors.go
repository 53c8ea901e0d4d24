package desk

import "errors"

var (
	// ErrNoDraft means a wizard command arrived with no draft in progress.
	ErrNoDraft = errors.New("no draft in progress")

	// ErrNotFound means the dispatch engine does not know the campaign.
	ErrNotFound = errors.New("campaign not found")

	// ErrSenderNotConnected means the audience step selected a sender that
	// is not currently connected.
	ErrSenderNotConnected = errors.New("sender not connected")
)
