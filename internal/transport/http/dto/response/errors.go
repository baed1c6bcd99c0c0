package response

const (
	CodeInvalidRequest = "invalid_request"
	CodeAuthentication = "authentication_failed"
	CodeForbidden      = "forbidden"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeValidation     = "validation_failed"
	CodePartialFailure = "partial_failure"
	CodeInternal       = "internal_error"
)

var (
	ErrInvalidRequestFormat = ErrorResponse{
		Status:  "error",
		Error:   CodeInvalidRequest,
		Details: "Invalid request format",
	}

	ErrAuthenticationFailed = ErrorResponse{
		Status:  "error",
		Error:   CodeAuthentication,
		Details: "Invalid login or password",
	}

	ErrAuthenticationRequired = ErrorResponse{
		Status:  "error",
		Error:   CodeAuthentication,
		Details: "Authentication required",
	}

	ErrPermissionDenied = ErrorResponse{
		Status:  "error",
		Error:   CodeForbidden,
		Details: "manage_image_gallery permission required",
	}

	ErrInternal = ErrorResponse{
		Status:  "error",
		Error:   CodeInternal,
		Details: "Internal server error",
	}
)
