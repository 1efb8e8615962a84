package errors

var (
	// Domain errors surfaced verbatim to callers.
	ErrDuplicatePending = New(CodeDuplicatePending, "a join request is already pending for this group")
	ErrAlreadyMember    = New(CodeAlreadyMember, "already a member of this group")
	ErrNotAMember       = New(CodeNotAMember, "not a member of this group")
	ErrNotAuthorized    = New(CodeNotAuthorized, "only the group creator can resolve requests")
	ErrNotPending       = New(CodeNotPending, "request has already been resolved")

	ErrGroupNotFound   = New(CodeNotFound, "group not found")
	ErrRequestNotFound = New(CodeNotFound, "join request not found")
)

// StoreUnavailable wraps an infrastructure failure from the persistent store.
func StoreUnavailable(cause error) error {
	return Wrap(CodeStoreUnavailable, "store unavailable", cause)
}

// ChannelInterrupted wraps a realtime transport failure that requires the
// consumer to resynchronize.
func ChannelInterrupted(cause error) error {
	return Wrap(CodeChannelInterrupted, "realtime channel interrupted", cause)
}
