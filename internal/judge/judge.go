// Package judge calls the external vision model that scores face images.
//
// The model is opaque and non-deterministic: images in, free-form text
// out. Transient overload is retried with bounded exponential backoff;
// callers substitute a flagged fallback analysis once retries are
// exhausted so the user-facing flow always completes.
package judge

import (
	"context"
	"errors"
)

// Sentinel kinds for judge errors.
var (
	// ErrOverloaded marks a transient upstream overload after retries
	// were exhausted.
	ErrOverloaded = errors.New("model overloaded")

	// ErrEmptyResponse marks a reply with no usable text.
	ErrEmptyResponse = errors.New("empty model response")
)

// Judge produces the free-form evaluation text for one or more face
// images. Implementations own their retry policy; a returned error means
// the attempt budget is spent.
type Judge interface {
	// Evaluate scores a single face image.
	Evaluate(ctx context.Context, image []byte) (string, error)

	// Compare scores 2..4 face images against each other in order.
	Compare(ctx context.Context, images [][]byte) (string, error)
}
