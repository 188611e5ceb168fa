package journal

import "git.home.luguber.info/inful/bedshift/internal/foundation/errors"

var (
	// ErrOpenFailed indicates the journal database could not be opened.
	ErrOpenFailed = errors.StorageError("could not open adherence journal").Build()

	// ErrAppendFailed indicates appending an event failed.
	ErrAppendFailed = errors.StorageError("failed to append adherence event").Build()

	// ErrQueryFailed indicates querying or scanning events failed.
	ErrQueryFailed = errors.StorageError("failed to query adherence journal").Build()
)
