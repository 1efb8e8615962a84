package errors

type Code string

const (
	CodeUnknown            Code = "UNKNOWN"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeDuplicatePending   Code = "DUPLICATE_PENDING"
	CodeAlreadyMember      Code = "ALREADY_MEMBER"
	CodeNotAMember         Code = "NOT_A_MEMBER"
	CodeNotAuthorized      Code = "NOT_AUTHORIZED"
	CodeNotPending         Code = "NOT_PENDING"
	CodeStoreUnavailable   Code = "STORE_UNAVAILABLE"
	CodeChannelInterrupted Code = "CHANNEL_INTERRUPTED"
)
