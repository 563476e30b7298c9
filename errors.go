package tsreplay

import "errors"

// Sentinel errors returned by the replay engine. Callers should use
// errors.Is against these rather than comparing strings.
var (
	ErrPacketMustStartWithASyncByte = errors.New("tsreplay: packet must start with a sync byte")
	ErrWrongFormat                  = errors.New("tsreplay: wrong file format")
	ErrFirstPCRNotFound             = errors.New("tsreplay: first PCR is not found")
	ErrFileTooSmall                 = errors.New("tsreplay: file is too small")
	ErrMissingFilename              = errors.New("tsreplay: filename is required")
	ErrPositionUnsupported          = errors.New("tsreplay: position is only supported on M2TS files with known length")
	ErrClosed                       = errors.New("tsreplay: replay has been closed")
)
