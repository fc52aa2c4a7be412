// Package rotatefile implements the rotating file sink's core: path
// derivation, rotation policy, the rename protocol, and background
// retention. It is used by the flexiroll.Sink write frontend as the active
// io.WriteCloser and exposes a few extra accessors (CurrentFilename,
// ValidateLogs) that a plain io.WriteCloser does not have.
package rotatefile
