// Package crypto wraps the platform cryptographic primitives used by the
// key lifecycle subsystem: ECDH key agreement over NIST P-384, HKDF-SHA256
// key derivation and AES-256-GCM payload protection.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/root-sector/group-chat-module-keylifecycle/interfaces"
	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

const (
	// SymmetricKeySize is the size of derived AES-256-GCM keys.
	SymmetricKeySize = 32

	// kdfInfo provides domain separation for bundle key derivation. It is
	// constant so that both sides of an exchange derive the same key.
	kdfInfo = "group-key-bundle:v1"
)

// provider implements the CryptoProvider interface over NIST P-384.
type provider struct {
	curve ecdh.Curve
	rand  io.Reader
}

// NewProvider returns a stateless crypto provider. It is safe to share a
// single instance across services and goroutines.
func NewProvider() interfaces.CryptoProvider {
	return &provider{curve: ecdh.P384(), rand: rand.Reader}
}

// GenerateKeyPair produces a fresh P-384 key pair with the private scalar
// held in secure memory.
func (p *provider) GenerateKeyPair() (*types.KeyPair, error) {
	priv, err := p.curve.GenerateKey(p.rand)
	if err != nil {
		return nil, fmt.Errorf("%w: key generation failed: %v", ErrProviderUnavailable, err)
	}

	scalar := priv.Bytes()
	pair := &types.KeyPair{
		Curve:   types.CurveP384,
		Public:  priv.PublicKey().Bytes(),
		Private: types.NewSecureBytes(scalar),
	}
	wipe(scalar)

	return pair, nil
}

// DeriveSharedKey performs ECDH between the local private scalar and the
// remote public key, then expands the shared secret through HKDF-SHA256
// into a 256-bit AES-GCM key.
func (p *provider) DeriveSharedKey(localPrivate *types.SecureBytes, remotePublic []byte) ([]byte, error) {
	if localPrivate.Len() == 0 {
		return nil, fmt.Errorf("%w: missing private scalar", ErrInvalidPrivateKey)
	}

	scalar := localPrivate.Get()
	defer wipe(scalar)

	priv, err := p.curve.NewPrivateKey(scalar)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	pub, err := p.curve.NewPublicKey(remotePublic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	secret, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("ECDH agreement failed: %w", err)
	}
	defer wipe(secret)

	key := make([]byte, SymmetricKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(kdfInfo)), key); err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	return key, nil
}

// Encrypt seals plaintext under the key with a fresh random nonce.
func (p *provider) Encrypt(key, plaintext []byte) ([]byte, []byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce, err := p.RandomBytes(gcm.NonceSize())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens ciphertext, failing closed on any tampering.
func (p *provider) Decrypt(key, ciphertext, nonce []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: nonce length %d, want %d", ErrDecryptionFailed, len(nonce), gcm.NonceSize())
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// Fail closed: never surface partial plaintext or the cipher error
		// detail to callers.
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// RandomBytes returns n cryptographically secure random bytes.
func (p *provider) RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(p.rand, buf); err != nil {
		return nil, fmt.Errorf("%w: RNG read failed: %v", ErrProviderUnavailable, err)
	}
	return buf, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != SymmetricKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeySize, len(key), SymmetricKeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher block: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}

	return gcm, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
