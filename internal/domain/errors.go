package domain

import "errors"

// Backend errors - 儲存後端層錯誤
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrPermissionDenied indicates insufficient permissions
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotDirectory indicates expected a directory but got a file
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotFile indicates expected a file but got a directory
	ErrNotFile = errors.New("not a file")

	// ErrUnsupported indicates the backend does not implement the operation
	ErrUnsupported = errors.New("operation not supported")

	// ErrInvalidName indicates a name that is empty or contains a path separator
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidSlot indicates a slot number outside the device range
	ErrInvalidSlot = errors.New("invalid slot")

	// ErrNetworkError indicates a network-related failure
	ErrNetworkError = errors.New("network error")

	// ErrChecksumMismatch indicates downloaded data does not match the remote digest
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Transfer errors - 傳輸層錯誤
var (
	// ErrShortTransfer indicates fewer bytes were moved than requested (EIO)
	ErrShortTransfer = errors.New("I/O error: short transfer")

	// ErrCanceled indicates the job was canceled through its control handle
	ErrCanceled = errors.New("job canceled")

	// ErrBackendBusy indicates another process holds the backend lock
	ErrBackendBusy = errors.New("backend is busy")
)

// Config errors - 設定檔錯誤
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates config file is malformed
	ErrConfigInvalid = errors.New("invalid config")

	// ErrTransportNotFound indicates referenced transport doesn't exist
	ErrTransportNotFound = errors.New("transport not found")
)
