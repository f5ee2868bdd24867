package conversation

import "errors"

// Sentinel errors for store operations. Part of the Store's public API;
// check with errors.Is().
var (
	// ErrConversationNotFound indicates the referenced conversation does not
	// exist. Surfaced on writes against a missing conversation; reads return
	// empty results instead.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrStoreUnavailable indicates the persistent store failed for reasons
	// other than a missing row, typically infrastructure trouble.
	ErrStoreUnavailable = errors.New("store unavailable")
)
