package core

import "errors"

// Sentinel errors returned by the chain state machine. Callers should use
// errors.Is against these values rather than matching on message text.
var (
	// ErrBlockAlreadyClosed is returned when a mutation (Pool, Close) is
	// attempted against a block that has already transitioned to closed.
	ErrBlockAlreadyClosed = errors.New("core: block already closed")

	// ErrBlockNotClosed is returned when Verify is called on an open block.
	ErrBlockNotClosed = errors.New("core: block not closed")

	// ErrInvalidChain is returned when a chain fails structural or
	// linkage verification, or when Join cannot place an incoming block.
	ErrInvalidChain = errors.New("core: invalid chain")

	// ErrInvalidKey is returned when a proof-of-work key is the wrong
	// length or its hash does not end with the block's magic number.
	ErrInvalidKey = errors.New("core: invalid key")

	// ErrInvalidSignature is returned when a signature fails verification.
	ErrInvalidSignature = errors.New("core: invalid signature")

	// ErrNoPrivateKey is returned when signing is attempted with an
	// identity that only holds a public key.
	ErrNoPrivateKey = errors.New("core: no private key")
)
