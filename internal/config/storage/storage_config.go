package storage

// StorageConfig locates the SQLite database and the credential sealing key.
type StorageConfig struct {
	Database string `json:"database"`
	// CredentialKey seals stored marketplace credentials. `flipagent onboard`
	// generates one; changing it makes existing credentials unreadable.
	CredentialKey string `json:"credentialKey"`
}

func DefaultStorageConfig() StorageConfig {
	return StorageConfig{Database: "~/.flipagent/flipagent.db"}
}
