package types

// ProviderType represents the type of KMS provider used to wrap group key
// material at rest.
type ProviderType string

const (
	ProviderAead  ProviderType = "aead"
	ProviderAWS   ProviderType = "aws"
	ProviderAzure ProviderType = "azure"
	ProviderGCP   ProviderType = "gcp"
	ProviderVault ProviderType = "vault"
)
