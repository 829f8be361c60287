package kms

import (
	"github.com/root-sector/group-chat-module-keylifecycle/interfaces"
	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

// Provider is the KMS surface used to wrap group key material at rest.
// It aliases the canonical interface so callers can depend on either.
type Provider = interfaces.KMSProvider

// Config represents the KMS provider configuration.
type Config struct {
	Type types.ProviderType `json:"type" bson:"type"`

	// AEAD (local) provider settings
	AeadKeyBase64 string `json:"aeadKeyBase64,omitempty" bson:"aeadKeyBase64,omitempty"`
	AeadKeyID     string `json:"aeadKeyId,omitempty" bson:"aeadKeyId,omitempty"`

	// Cloud provider settings; exactly one should match Type
	AWS   *AWSConfig   `json:"aws,omitempty" bson:"aws,omitempty"`
	Azure *AzureConfig `json:"azure,omitempty" bson:"azure,omitempty"`
	GCP   *GCPConfig   `json:"gcp,omitempty" bson:"gcp,omitempty"`
	Vault *VaultConfig `json:"vault,omitempty" bson:"vault,omitempty"`
}

// AWSConfig holds AWS KMS settings.
type AWSConfig struct {
	KeyID       string                 `json:"keyId" bson:"keyId"`
	Region      string                 `json:"region" bson:"region"`
	Credentials map[string]interface{} `json:"credentials,omitempty" bson:"credentials,omitempty"`
}

// AzureConfig holds Azure Key Vault settings.
type AzureConfig struct {
	KeyID        string                 `json:"keyId" bson:"keyId"`
	VaultAddress string                 `json:"vaultAddress" bson:"vaultAddress"`
	Credentials  map[string]interface{} `json:"credentials,omitempty" bson:"credentials,omitempty"`
}

// GCPConfig holds Google Cloud KMS settings.
type GCPConfig struct {
	// ResourceName is the full crypto key path:
	// projects/{project}/locations/{location}/keyRings/{keyRing}/cryptoKeys/{cryptoKey}
	ResourceName string                 `json:"resourceName" bson:"resourceName"`
	Credentials  map[string]interface{} `json:"credentials,omitempty" bson:"credentials,omitempty"`
}

// VaultConfig holds HashiCorp Vault Transit settings.
type VaultConfig struct {
	KeyID        string                 `json:"keyId" bson:"keyId"`
	VaultAddress string                 `json:"vaultAddress" bson:"vaultAddress"`
	VaultMount   string                 `json:"vaultMount,omitempty" bson:"vaultMount,omitempty"`
	Credentials  map[string]interface{} `json:"credentials,omitempty" bson:"credentials,omitempty"`
}
