package generation

import "errors"

// Error definitions for generation operations.
var (
	// ErrGenerationFailed indicates the provider call failed or returned an
	// unusable response.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrEmptyCompletion indicates the provider returned no choices or an
	// empty message.
	ErrEmptyCompletion = errors.New("provider returned an empty completion")

	// ErrImageUnsupported indicates the configured provider cannot generate
	// images.
	ErrImageUnsupported = errors.New("image generation not supported by this provider")

	// ErrMissingAPIKey indicates no provider credential was supplied for the
	// call.
	ErrMissingAPIKey = errors.New("no API key supplied")
)
