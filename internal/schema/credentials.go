package schema

// Credentials are the stored secrets for one user on one marketplace.
// Keys follow the marketplace's naming (access_token, api_key, app_id, …).
type Credentials map[string]string

// CredentialStore is the read side used by the tool dispatcher.
type CredentialStore interface {
	Lookup(userID string, platform Platform) (Credentials, bool)
}

// CredentialManager adds the write side used by credential tools and the CLI.
type CredentialManager interface {
	CredentialStore
	Save(userID string, platform Platform, creds Credentials) error
	Delete(userID string, platform Platform) (bool, error)
	Platforms(userID string) ([]Platform, error)
}
