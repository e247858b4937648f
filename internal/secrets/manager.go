package secrets

// DefaultManager returns a SecretsManager for DefaultSecretsPath.
// The encryption key comes from BILLTOOL_SECRETS_PASSPHRASE or the machine id.
func DefaultManager() (SecretsManager, error) {
	path, err := DefaultSecretsPath()
	if err != nil {
		return nil, err
	}
	return NewFileManager(path)
}
