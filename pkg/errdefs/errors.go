package errdefs

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the engine matches exactly one of
// these through errors.Is.
var (
	ErrFormat       = errors.New("format error")
	ErrNotFound     = errors.New("not found")
	ErrNetwork      = errors.New("network error")
	ErrVerification = errors.New("verification error")
	ErrFilesystem   = errors.New("filesystem error")
)

// Stage names used in error messages
const (
	StageLoad         = "engine load"
	StageCatalog      = "catalog fetch"
	StageNormalize    = "catalog normalization"
	StageResolve      = "version resolution"
	StageDownloadList = "download list"
	StageDownload     = "download"
	StageChecksum     = "checksum verification"
	StageExtract      = "extraction"
	StagePrepare      = "directory preparation"
	StageLayout       = "file layout"
	StageVerify       = "installation verification"
	StageCommit       = "commit"
	StageRollback     = "rollback"
	StageUninstall    = "uninstall"
)

// Error represents a standardized error for environment operations
type Error struct {
	Engine  string // Engine name (e.g., "node", "php")
	Version string // Requested or resolved version, when known
	Stage   string // Failing stage (e.g., "download", "extraction")
	Kind    error  // One of the Err* kinds
	Err     error  // Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("%s %s %s failed: %v", e.Engine, e.Version, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Engine, e.Stage, e.Err)
}

// Unwrap returns the underlying error for error unwrapping
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// New creates a new Error
func New(kind error, engine, version, stage string, err error) *Error {
	return &Error{
		Engine:  engine,
		Version: version,
		Stage:   stage,
		Kind:    kind,
		Err:     err,
	}
}

// Format creates a malformed catalog or contract violation error
func Format(engine, version, stage string, err error) *Error {
	return New(ErrFormat, engine, version, stage, err)
}

// NotFound creates an error for a version or engine that does not exist
func NotFound(engine, version, stage string, err error) *Error {
	return New(ErrNotFound, engine, version, stage, err)
}

// Network creates a download or catalog fetch error
func Network(engine, version, stage string, err error) *Error {
	return New(ErrNetwork, engine, version, stage, err)
}

// Verification creates a post-install or checksum verification error
func Verification(engine, version, stage string, err error) *Error {
	return New(ErrVerification, engine, version, stage, err)
}

// Filesystem creates an error for a path that cannot be created, renamed or removed
func Filesystem(engine, version, stage string, err error) *Error {
	return New(ErrFilesystem, engine, version, stage, err)
}

// Wrap wraps an error with engine context if it's not already an *Error
func Wrap(kind error, engine, version, stage string, err error) error {
	if err == nil {
		return nil
	}

	var envErr *Error
	if errors.As(err, &envErr) {
		return err
	}

	return New(kind, engine, version, stage, err)
}

// KindOf returns the kind of err, or nil when err carries no kind
func KindOf(err error) error {
	for _, kind := range []error{ErrFormat, ErrNotFound, ErrNetwork, ErrVerification, ErrFilesystem} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// StageOf extracts the failing stage from an *Error
func StageOf(err error) string {
	var envErr *Error
	if errors.As(err, &envErr) {
		return envErr.Stage
	}
	return ""
}
