// Package apperrors defines the typed error kinds raised across the
// cognitive deduplication engine. Each kind carries the context an
// operator needs to diagnose it without re-deriving it from a bare
// string message.
package apperrors

import "fmt"

// InvalidMagicError is raised when a blob does not start with the UCOG
// magic bytes.
type InvalidMagicError struct {
	Got []byte
}

func (e InvalidMagicError) Error() string {
	return fmt.Sprintf("invalid magic: got %x", e.Got)
}

// UnsupportedVersionError is raised when a blob declares a UCOG version
// this decoder does not understand.
type UnsupportedVersionError struct {
	Version byte
}

func (e UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported UCOG version %d", e.Version)
}

// TruncatedInputError is raised when a blob ends before a token or
// varint is fully readable.
type TruncatedInputError struct {
	Offset int
	Need   int
	Have   int
}

func (e TruncatedInputError) Error() string {
	return fmt.Sprintf("truncated input at offset %d: need %d bytes, have %d", e.Offset, e.Need, e.Have)
}

// MalformedTokenError is raised when a token's tag byte or internal
// framing cannot be interpreted.
type MalformedTokenError struct {
	Offset int
	Reason string
}

func (e MalformedTokenError) Error() string {
	return fmt.Sprintf("malformed token at offset %d: %s", e.Offset, e.Reason)
}

// UnknownChunkError is raised when a REF/DELTA/PRED_DELTA token names a
// chunk_id absent from the store.
type UnknownChunkError struct {
	ChunkID uint64
}

func (e UnknownChunkError) Error() string {
	return fmt.Sprintf("unknown chunk_id=%d", e.ChunkID)
}

// DecompressionFailureError wraps a zstd decompression failure.
type DecompressionFailureError struct {
	Op  string
	Err error
}

func (e DecompressionFailureError) Error() string {
	return fmt.Sprintf("decompression failure during %s: %v", e.Op, e.Err)
}

func (e DecompressionFailureError) Unwrap() error { return e.Err }

// IntegrityMismatchError is raised when a decoded payload's hash does
// not match the hash supplied by the caller.
type IntegrityMismatchError struct {
	Expected []byte
	Got      []byte
}

func (e IntegrityMismatchError) Error() string {
	return fmt.Sprintf("integrity mismatch: expected %x, got %x", e.Expected, e.Got)
}

// ExpansionLimitExceededError is raised when a delta's decompressed size
// exceeds the configured expansion bound, a possible decompression bomb.
type ExpansionLimitExceededError struct {
	SrcLen    int
	ResultLen int
	MaxRatio  float64
}

func (e ExpansionLimitExceededError) Error() string {
	return fmt.Sprintf("delta expansion limit exceeded: %d -> %d bytes (max ratio %.1fx)", e.SrcLen, e.ResultLen, e.MaxRatio)
}

// StreamMisuseError is raised when a streaming encoder is fed after
// finish, or finished twice.
type StreamMisuseError struct {
	Operation string
}

func (e StreamMisuseError) Error() string {
	return fmt.Sprintf("stream misuse: %s called on a finished stream", e.Operation)
}

// StoreUnavailableError wraps a failure from the durable store backend.
type StoreUnavailableError struct {
	Operation string
	Err       error
}

func (e StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Operation, e.Err)
}

func (e StoreUnavailableError) Unwrap() error { return e.Err }

// ArchiveReadError wraps a failure reading a chunk out of the cold
// archive.
type ArchiveReadError struct {
	ChunkID uint64
	Err     error
}

func (e ArchiveReadError) Error() string {
	return fmt.Sprintf("archive read failed for chunk_id=%d: %v", e.ChunkID, e.Err)
}

func (e ArchiveReadError) Unwrap() error { return e.Err }

// PredictorBuildFailureError is a local, non-propagating failure to
// build a predictive dictionary. Callers fall back to FULL/DELTA.
type PredictorBuildFailureError struct {
	TriggerChunkID uint64
	Err            error
}

func (e PredictorBuildFailureError) Error() string {
	return fmt.Sprintf("predictor dictionary build failed for trigger=%d: %v", e.TriggerChunkID, e.Err)
}

func (e PredictorBuildFailureError) Unwrap() error { return e.Err }
