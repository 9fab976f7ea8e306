package builder

import "errors"

// The build entry point surfaces every recoverable fault as one of these
// sentinels; callers match with errors.Is and abort the whole run. There is
// no per-k-mer recovery.
var (
	// ErrInvalidConfig flags a bad k, omega, mu, or an unknown algorithm
	// or filter.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput flags malformed Newick, FASTA or matrix input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInconsistentTree flags disagreement between the extended tree and
	// the reconstruction tree.
	ErrInconsistentTree = errors.New("inconsistent trees")

	// ErrIO flags filesystem failures; shard writes are not retried.
	ErrIO = errors.New("i/o error")

	// ErrUnsupported flags a requested feature this build does not carry.
	ErrUnsupported = errors.New("unsupported")

	// ErrInternal flags an invariant violation.
	ErrInternal = errors.New("internal error")
)
