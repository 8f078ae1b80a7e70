package errors

const (
	// Generic codes
	CodeNotFound               = "NOT_FOUND"
	CodeAlreadyExists          = "ALREADY_EXISTS"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeConflict               = "CONFLICT"
	CodeInternalServer         = "INTERNAL_SERVER"
	CodeServiceUnavailable     = "SERVICE_UNAVAILABLE"
	CodeEventPublishError      = "EVENT_PUBLISH_ERROR"
	CodeEventSubscribtionError = "EVENT_SUBSCRIPTION_ERROR"
	CodeObjectMarshalError     = "OBJECT_MARSHALL_ERROR"
	CodeObjectUnmarshalError   = "OBJECT_UNMARSHALL_ERROR"
	CodeDatabaseError          = "DATABASE_ERROR"
	CodeConfigError            = "CONFIG_ERROR"

	// Roster codes
	CodeRegistrationClosed = "REGISTRATION_CLOSED"
	CodeDuplicateName      = "DUPLICATE_NAME"
	CodeRosterFull         = "ROSTER_FULL"
	CodeEntryNotFound      = "ENTRY_NOT_FOUND"
)
