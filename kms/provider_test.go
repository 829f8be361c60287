package kms

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

// --- Test Cases for Validation Functions ---

func TestValidateAWSConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    AWSConfig
		expectErr bool
		errSubstr string // Substring expected in the error message
	}{
		{
			name: "Valid AWS Config",
			config: AWSConfig{
				KeyID:  "arn:aws:kms:us-east-1:123456789012:key/valid-key-id",
				Region: "us-east-1",
				Credentials: map[string]interface{}{
					"accessKeyId":     "ACCESSKEY",
					"secretAccessKey": "SECRETKEY",
				},
			},
			expectErr: false,
		},
		{
			name: "Valid AWS Config (No Credentials)",
			config: AWSConfig{
				KeyID:  "arn:aws:kms:us-east-1:123456789012:key/valid-key-id",
				Region: "us-east-1",
			},
			expectErr: false, // Credentials are optional
		},
		{
			name: "Missing KeyID",
			config: AWSConfig{
				Region: "us-east-1",
			},
			expectErr: true,
			errSubstr: "key ID (ARN) is required",
		},
		{
			name: "Missing Region",
			config: AWSConfig{
				KeyID: "arn:aws:kms:us-east-1:123456789012:key/valid-key-id",
			},
			expectErr: true,
			errSubstr: "region is required",
		},
		{
			name: "Missing Secret Key",
			config: AWSConfig{
				KeyID:  "arn:aws:kms:us-east-1:123456789012:key/valid-key-id",
				Region: "us-east-1",
				Credentials: map[string]interface{}{
					"accessKeyId": "ACCESSKEY",
				},
			},
			expectErr: true,
			errSubstr: "both accessKeyId and secretAccessKey must be provided",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAWSConfig(tt.config)
			if tt.expectErr {
				if err == nil {
					t.Errorf("expected an error but got nil")
				} else if tt.errSubstr != "" && !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errSubstr, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no error but got: %v", err)
			}
		})
	}
}

func TestValidateAzureConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    AzureConfig
		expectErr bool
		errSubstr string
	}{
		{
			name: "Valid Azure Config",
			config: AzureConfig{
				KeyID:        "https://myvault.vault.azure.net/keys/mykey/version",
				VaultAddress: "https://myvault.vault.azure.net",
				Credentials: map[string]interface{}{
					"tenantId":     "TENANT",
					"clientId":     "CLIENT",
					"clientSecret": "SECRET",
				},
			},
			expectErr: false,
		},
		{
			name: "Valid Azure Config (No Credentials - MSI)",
			config: AzureConfig{
				KeyID:        "https://myvault.vault.azure.net/keys/mykey/version",
				VaultAddress: "https://myvault.vault.azure.net",
			},
			expectErr: false, // Credentials optional
		},
		{
			name: "Missing KeyID",
			config: AzureConfig{
				VaultAddress: "https://myvault.vault.azure.net",
			},
			expectErr: true,
			errSubstr: "key ID (URL) is required",
		},
		{
			name: "Invalid Vault Address Format",
			config: AzureConfig{
				KeyID:        "https://myvault.vault.azure.net/keys/mykey/version",
				VaultAddress: "myvault",
			},
			expectErr: true,
			errSubstr: "vault address must be a valid Azure Key Vault URL",
		},
		{
			name: "Missing Tenant ID",
			config: AzureConfig{
				KeyID:        "https://myvault.vault.azure.net/keys/mykey/version",
				VaultAddress: "https://myvault.vault.azure.net",
				Credentials: map[string]interface{}{
					"clientId":     "CLIENT",
					"clientSecret": "SECRET",
				},
			},
			expectErr: true,
			errSubstr: "tenantId is required in credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAzureConfig(tt.config)
			if tt.expectErr {
				if err == nil {
					t.Errorf("expected an error but got nil")
				} else if tt.errSubstr != "" && !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errSubstr, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no error but got: %v", err)
			}
		})
	}
}

func TestValidateGCPConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    GCPConfig
		expectErr bool
		errSubstr string
	}{
		{
			name: "Valid GCP Config",
			config: GCPConfig{
				ResourceName: "projects/p/locations/l/keyRings/kr/cryptoKeys/ck",
				Credentials: map[string]interface{}{
					"credentialsJson": `{"type": "service_account"}`,
				},
			},
			expectErr: false,
		},
		{
			name: "Valid GCP Config (ADC)",
			config: GCPConfig{
				ResourceName: "projects/p/locations/l/keyRings/kr/cryptoKeys/ck",
			},
			expectErr: false,
		},
		{
			name:      "Missing Resource Name",
			config:    GCPConfig{},
			expectErr: true,
			errSubstr: "resource name is required",
		},
		{
			name: "Malformed Resource Name",
			config: GCPConfig{
				ResourceName: "projects/p/keyRings/kr/cryptoKeys/ck",
			},
			expectErr: true,
			errSubstr: "invalid resource name format",
		},
		{
			name: "Empty Resource Name Component",
			config: GCPConfig{
				ResourceName: "projects//locations/l/keyRings/kr/cryptoKeys/ck",
			},
			expectErr: true,
			errSubstr: "cannot be empty",
		},
		{
			name: "Empty credentialsJson",
			config: GCPConfig{
				ResourceName: "projects/p/locations/l/keyRings/kr/cryptoKeys/ck",
				Credentials: map[string]interface{}{
					"credentialsJson": "",
				},
			},
			expectErr: true,
			errSubstr: "credentialsJson is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateGCPConfig(tt.config)
			if tt.expectErr {
				if err == nil {
					t.Errorf("expected an error but got nil")
				} else if tt.errSubstr != "" && !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errSubstr, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no error but got: %v", err)
			}
		})
	}
}

func TestValidateVaultConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    VaultConfig
		expectErr bool
		errSubstr string
	}{
		{
			name: "Valid Vault Config",
			config: VaultConfig{
				KeyID:        "my-transit-key",
				VaultAddress: "https://vault.example.com:8200",
				VaultMount:   "transit",
				Credentials: map[string]interface{}{
					"token": "s.token",
				},
			},
			expectErr: false,
		},
		{
			name: "Valid Vault Config (Token From Env)",
			config: VaultConfig{
				KeyID:        "my-transit-key",
				VaultAddress: "https://vault.example.com:8200",
			},
			expectErr: false,
		},
		{
			name: "Missing KeyID",
			config: VaultConfig{
				VaultAddress: "https://vault.example.com:8200",
			},
			expectErr: true,
			errSubstr: "key ID (key name) is required",
		},
		{
			name: "Missing Vault Address",
			config: VaultConfig{
				KeyID: "my-transit-key",
			},
			expectErr: true,
			errSubstr: "vault address is required",
		},
		{
			name: "Empty Token",
			config: VaultConfig{
				KeyID:        "my-transit-key",
				VaultAddress: "https://vault.example.com:8200",
				Credentials: map[string]interface{}{
					"token": "",
				},
			},
			expectErr: true,
			errSubstr: "token is required in credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateVaultConfig(tt.config)
			if tt.expectErr {
				if err == nil {
					t.Errorf("expected an error but got nil")
				} else if tt.errSubstr != "" && !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errSubstr, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no error but got: %v", err)
			}
		})
	}
}

// --- AEAD Provider ---

func TestNewProviderAead(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))

	p, err := NewProvider(Config{
		Type:          types.ProviderAead,
		AeadKeyBase64: key,
		AeadKeyID:     "local-test-key",
	})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.GetWrapper() == nil {
		t.Fatal("expected a configured wrapper")
	}

	ctx := context.Background()
	if err := p.Test(ctx); err != nil {
		t.Errorf("wrap/unwrap round trip failed: %v", err)
	}
	if err := p.HealthCheck(ctx); err != nil {
		t.Errorf("health check failed: %v", err)
	}
	if p.GetLastHealthCheckError() != nil {
		t.Errorf("expected no recorded health check error, got %v", p.GetLastHealthCheckError())
	}
}

func TestNewProviderAeadRejectsBadKey(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		errSubstr string
	}{
		{
			name:      "Missing Key",
			config:    Config{Type: types.ProviderAead},
			errSubstr: "requires AeadKeyBase64",
		},
		{
			name: "Invalid Base64",
			config: Config{
				Type:          types.ProviderAead,
				AeadKeyBase64: "not-base64!!!",
			},
			errSubstr: "failed to decode",
		},
		{
			name: "Wrong Key Length",
			config: Config{
				Type:          types.ProviderAead,
				AeadKeyBase64: base64.StdEncoding.EncodeToString(make([]byte, 16)),
			},
			errSubstr: "must be 32 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.config)
			if err == nil {
				t.Fatal("expected an error but got nil")
			}
			if !strings.Contains(err.Error(), tt.errSubstr) {
				t.Errorf("expected error containing %q, got %q", tt.errSubstr, err.Error())
			}
		})
	}
}

func TestNewProviderUnsupportedType(t *testing.T) {
	if _, err := NewProvider(Config{Type: "pigeon"}); err == nil || !strings.Contains(err.Error(), "unsupported KMS provider type") {
		t.Errorf("expected unsupported-type error, got %v", err)
	}
}
