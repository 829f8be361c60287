package crypto

import "errors"

var (
	// ErrProviderUnavailable is returned when the platform RNG or cipher
	// provider cannot be used
	ErrProviderUnavailable = errors.New("crypto provider unavailable")

	// ErrDecryptionFailed is returned on authentication tag mismatch
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")

	// ErrInvalidPublicKey is returned when a counterparty public key cannot
	// be parsed as a point on the configured curve
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidPrivateKey is returned when a private scalar is missing or
	// malformed
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrInvalidKeySize is returned when a symmetric key has the wrong length
	ErrInvalidKeySize = errors.New("invalid symmetric key size")
)
