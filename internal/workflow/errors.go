package workflow

import "errors"

var (
	// ErrAlreadyRunning is returned by RunAll while another RunAll is active.
	ErrAlreadyRunning = errors.New("workflow already running")
	// ErrUnsupportedArtifact is returned by Enqueue for content that is not a
	// decodable image.
	ErrUnsupportedArtifact = errors.New("unsupported artifact")
)
