package apperrors

type Code string

const (
	CodeUnknown              Code = "UNKNOWN"
	CodeInvalidArgument      Code = "INVALID_ARGUMENT"
	CodeNotFound             Code = "NOT_FOUND"
	CodeAlreadyExists        Code = "ALREADY_EXISTS"
	CodePermissionDenied     Code = "PERMISSION_DENIED"
	CodeUnauthenticated      Code = "UNAUTHENTICATED"
	CodeUploadFailed         Code = "UPLOAD_FAILED"
	CodeTransportUnavailable Code = "TRANSPORT_UNAVAILABLE"
	CodeInternal             Code = "INTERNAL"
)
