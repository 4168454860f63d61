package chat

import "errors"

// Failure taxonomy of the repository. All errors returned from repository
// operations wrap exactly one of these sentinels; callers classify with
// errors.Is.
var (
	// ErrNotFound means the referenced session has no index entry or body.
	ErrNotFound = errors.New("chat: session not found")

	// ErrCorruptRecord means a session body failed to decode. The dangling
	// summary is dropped from the index before the error is returned.
	ErrCorruptRecord = errors.New("chat: corrupt session record")

	// ErrPartialPersistence means the session body was written but the
	// index update could not be confirmed. The mutation itself must not be
	// retried; RepairIndex is the safe recovery step.
	ErrPartialPersistence = errors.New("chat: body written but index not confirmed")

	// ErrStorageFailure means the underlying store rejected a read or write.
	ErrStorageFailure = errors.New("chat: storage failure")
)
