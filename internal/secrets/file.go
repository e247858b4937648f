package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const nonceSizeGCM = 12

// Hooks for tests.
var (
	defaultKeySource           = DefaultKeySource
	fileWriteFile              = os.WriteFile
	fileMarshal                = json.Marshal
	fileRandReader   io.Reader = rand.Reader
	fileCipherNewGCM           = cipher.NewGCM
)

// NewFileManager returns an AES-GCM encrypted file store keyed by
// DefaultKeySource.
func NewFileManager(path string) (*FileManager, error) {
	key, err := defaultKeySource()
	if err != nil {
		return nil, err
	}
	return NewFileManagerWithKey(path, key)
}

// NewFileManagerWithKey returns a file store with an explicit 32-byte key.
func NewFileManagerWithKey(path string, key []byte) (*FileManager, error) {
	if len(key) != 32 {
		return nil, errors.New("secrets: key must be 32 bytes")
	}
	return &FileManager{path: path, key: key}, nil
}

// FileManager keeps every secret in one encrypted JSON map. The file is
// nonce || ciphertext.
type FileManager struct {
	mu   sync.Mutex
	path string
	key  []byte
}

func (f *FileManager) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(f.key)
	if err != nil {
		return nil, err
	}
	return fileCipherNewGCM(block)
}

// readMap returns the stored map. A missing file is an empty map.
func (f *FileManager) readMap() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("secrets read: %w", err)
	}
	if len(data) < nonceSizeGCM {
		return nil, errors.New("secrets file truncated")
	}
	gcm, err := f.gcm()
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, data[:nonceSizeGCM], data[nonceSizeGCM:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWrongKey, f.path)
	}
	m := map[string]string{}
	if err := json.Unmarshal(plain, &m); err != nil {
		return nil, fmt.Errorf("secrets parse: %w", err)
	}
	return m, nil
}

func (f *FileManager) writeMap(m map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("secrets mkdir: %w", err)
	}
	plain, err := fileMarshal(m)
	if err != nil {
		return err
	}
	gcm, err := f.gcm()
	if err != nil {
		return err
	}
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(fileRandReader, nonce); err != nil {
		return err
	}
	return fileWriteFile(f.path, gcm.Seal(nonce, nonce, plain, nil), 0600)
}

func (f *FileManager) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.readMap()
	if err != nil {
		return "", err
	}
	v, ok := m[key]
	if !ok || v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key. It refuses to overwrite a file it cannot
// decrypt, so a wrong passphrase never destroys existing secrets.
func (f *FileManager) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.readMap()
	if err != nil {
		return err
	}
	m[key] = value
	return f.writeMap(m)
}

func (f *FileManager) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := os.Stat(f.path); os.IsNotExist(err) {
		return nil
	}
	m, err := f.readMap()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return f.writeMap(m)
}

// Keys returns the stored secret names, sorted. Values are never listed.
func (f *FileManager) Keys() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.readMap()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

var _ SecretsManager = (*FileManager)(nil)
