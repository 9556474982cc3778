package backup

import "errors"

// Backup/Restore errors
var (
	// ErrVerifyFailed indicates the copy did not unlock or replay.
	ErrVerifyFailed = errors.New("backup verification failed")

	// ErrTargetExists indicates the destination exists and Force was not set.
	ErrTargetExists = errors.New("destination already exists")

	// ErrSamePath indicates the source and destination are the same file.
	ErrSamePath = errors.New("source and destination are the same file")

	// ErrEmptyPassword indicates an empty password was provided.
	ErrEmptyPassword = errors.New("password cannot be empty")
)
