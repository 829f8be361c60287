package crypto

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/root-sector/group-chat-module-keylifecycle/interfaces"
	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

// agreement implements the KeyAgreement interface. The group shared key is
// generated directly and distributed through per-member ECDH bundles; it is
// never derived from a single party's own key pair, which would yield a key
// only that party could compute.
type agreement struct {
	provider interfaces.CryptoProvider
	zLogger  zerolog.Logger
}

// NewAgreement creates a new key agreement service.
func NewAgreement(provider interfaces.CryptoProvider, opLogger zerolog.Logger) (interfaces.KeyAgreement, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required for NewAgreement")
	}
	if opLogger.GetLevel() == zerolog.Disabled {
		opLogger = log.Logger
	}
	return &agreement{provider: provider, zLogger: opLogger}, nil
}

// GenerateGroupKey produces a fresh 256-bit group shared key for the epoch.
func (a *agreement) GenerateGroupKey(groupID string, version int) (*types.GroupSharedKey, error) {
	key, err := a.provider.RandomBytes(SymmetricKeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate group key: %w", err)
	}
	defer wipe(key)

	// Verify key is not all zeros (extremely unlikely but critical check)
	isZero := true
	for _, b := range key {
		if b != 0 {
			isZero = false
			break
		}
	}
	if isZero {
		return nil, fmt.Errorf("generated key is all zeros")
	}

	a.zLogger.Debug().
		Str("groupId", groupID).
		Int("version", version).
		Msg("Generated group shared key")

	return &types.GroupSharedKey{
		GroupID:   groupID,
		Version:   version,
		Key:       types.NewSecureBytes(key),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EncryptPayload protects a group payload under the shared key.
func (a *agreement) EncryptPayload(ctx context.Context, key *types.GroupSharedKey, plaintext []byte) ([]byte, []byte, error) {
	if key == nil || key.Key.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: missing group key material", ErrInvalidKeySize)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	material := key.Key.Get()
	defer wipe(material)

	ciphertext, nonce, err := a.provider.Encrypt(material, plaintext)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encrypt group payload: %w", err)
	}
	return ciphertext, nonce, nil
}

// DecryptPayload opens a group payload, failing closed on tampering.
func (a *agreement) DecryptPayload(ctx context.Context, key *types.GroupSharedKey, ciphertext, nonce []byte) ([]byte, error) {
	if key == nil || key.Key.Len() == 0 {
		return nil, fmt.Errorf("%w: missing group key material", ErrInvalidKeySize)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	material := key.Key.Get()
	defer wipe(material)

	return a.provider.Decrypt(material, ciphertext, nonce)
}
