package crypto

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewAgreementRequiresProvider(t *testing.T) {
	if _, err := NewAgreement(nil, zerolog.Nop()); err == nil {
		t.Error("expected error for nil provider")
	}
}

func TestGenerateGroupKey(t *testing.T) {
	svc, err := NewAgreement(NewProvider(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAgreement failed: %v", err)
	}

	key, err := svc.GenerateGroupKey("group-1", 3)
	if err != nil {
		t.Fatalf("GenerateGroupKey failed: %v", err)
	}
	if key.GroupID != "group-1" || key.Version != 3 {
		t.Errorf("unexpected key identity: %s v%d", key.GroupID, key.Version)
	}
	if key.Key.Len() != SymmetricKeySize {
		t.Errorf("expected %d-byte key material, got %d", SymmetricKeySize, key.Key.Len())
	}
	if key.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	other, err := svc.GenerateGroupKey("group-1", 4)
	if err != nil {
		t.Fatalf("GenerateGroupKey failed: %v", err)
	}
	if bytes.Equal(key.Key.Get(), other.Key.Get()) {
		t.Error("consecutive epochs share key material")
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, err := NewAgreement(NewProvider(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAgreement failed: %v", err)
	}

	key, err := svc.GenerateGroupKey("group-1", 1)
	if err != nil {
		t.Fatalf("GenerateGroupKey failed: %v", err)
	}

	plaintext := []byte("hello group")
	ciphertext, nonce, err := svc.EncryptPayload(ctx, key, plaintext)
	if err != nil {
		t.Fatalf("EncryptPayload failed: %v", err)
	}

	got, err := svc.DecryptPayload(ctx, key, ciphertext, nonce)
	if err != nil {
		t.Fatalf("DecryptPayload failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip mismatch: got %q", got)
	}

	// A different epoch's key must not open the payload.
	wrongEpoch, err := svc.GenerateGroupKey("group-1", 2)
	if err != nil {
		t.Fatalf("GenerateGroupKey failed: %v", err)
	}
	if _, err := svc.DecryptPayload(ctx, wrongEpoch, ciphertext, nonce); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed with wrong epoch key, got %v", err)
	}
}

func TestPayloadRejectsMissingKey(t *testing.T) {
	ctx := context.Background()
	svc, _ := NewAgreement(NewProvider(), zerolog.Nop())

	if _, _, err := svc.EncryptPayload(ctx, nil, []byte("x")); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("expected ErrInvalidKeySize for nil key, got %v", err)
	}
	if _, err := svc.DecryptPayload(ctx, nil, []byte("x"), []byte("y")); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("expected ErrInvalidKeySize for nil key, got %v", err)
	}
}

func TestPayloadHonorsContext(t *testing.T) {
	svc, _ := NewAgreement(NewProvider(), zerolog.Nop())
	key, err := svc.GenerateGroupKey("group-1", 1)
	if err != nil {
		t.Fatalf("GenerateGroupKey failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := svc.EncryptPayload(ctx, key, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
