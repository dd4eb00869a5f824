package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a referenced artifact, user or file was not found
	ErrNotFound = errors.New("not found")

	// ErrPermission indicates a role or ownership check rejected the operation
	ErrPermission = errors.New("permission denied")

	// ErrDuplicateUsername indicates a registration clashed with an existing username
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrInvalidCredentials indicates a failed login
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRole indicates a role outside admin/creator/viewer
	ErrInvalidRole = errors.New("invalid role")

	// ErrIDSpaceExhausted indicates every identifier in the allocation range is taken
	ErrIDSpaceExhausted = errors.New("identifier space exhausted")

	// ErrUnsupported indicates a file format or operation is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrCorrupt indicates a file is corrupt or unreadable
	ErrCorrupt = errors.New("corrupt file")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
