package core

import "errors"

var (
	// ErrClassifierUnavailable marks timeout, transport, or parse failures of
	// the language-understanding service. Recovered locally: the turn falls
	// through to the fallback synthesizer.
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrInvalidTaxID is recovered inside the checkout controller with a
	// specific correction request.
	ErrInvalidTaxID = errors.New("invalid tax identifier")

	// ErrAmbiguousReference: a pronoun or ellipsis could not be resolved
	// against the last referenced products. Surfaced as a clarifying
	// question, never as a fallback.
	ErrAmbiguousReference = errors.New("ambiguous product reference")

	// ErrEmptyCart guards order finalization.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrConcurrentMutation indicates per-session mutual exclusion was
	// violated. This is a correctness bug, fatal-logged, never rendered to
	// the user as-is.
	ErrConcurrentMutation = errors.New("concurrent session mutation")

	// ErrNotFound is the generic repository miss.
	ErrNotFound = errors.New("not found")
)
