package ai

import "errors"

var (
	// ErrNoClassification indicates the model returned no usable output.
	ErrNoClassification = errors.New("no classification returned")
)
