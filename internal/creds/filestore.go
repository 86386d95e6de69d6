package creds

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	credsFileName = "credentials.json"
	keyFileName   = "master.key"
	// MasterKeyEnv overrides the on-disk master key.
	MasterKeyEnv = "SMSGATED_MASTER_KEY"
)

type encryptedBlob struct {
	Version    string `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// FileStore keeps credentials in an encrypted blob under dir. The master
// key lives next to it with 0600 permissions unless provided via env.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file-backed credential store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Get returns the stored value for key, empty when unset.
func (f *FileStore) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

// Set stores a value and rewrites the encrypted blob.
func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, credsFileName))
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	key, err := f.masterKey()
	if err != nil {
		return nil, err
	}
	plain, err := decryptBlob(data, key)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials: %w", err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return values, nil
}

func (f *FileStore) save(values map[string]string) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	plain, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	key, err := f.masterKey()
	if err != nil {
		return err
	}
	sealed, err := encryptBlob(append(plain, '\n'), key)
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}
	return os.WriteFile(filepath.Join(f.dir, credsFileName), sealed, 0o600)
}

// masterKey returns the 32-byte AES key, creating one on first use.
func (f *FileStore) masterKey() ([]byte, error) {
	if envKey := strings.TrimSpace(os.Getenv(MasterKeyEnv)); envKey != "" {
		key, err := base64.RawStdEncoding.DecodeString(envKey)
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("invalid %s", MasterKeyEnv)
		}
		return key, nil
	}

	keyPath := filepath.Join(f.dir, keyFileName)
	if data, err := os.ReadFile(keyPath); err == nil {
		key, err := base64.RawStdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("corrupt master key at %s", keyPath)
		}
		return key, nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return nil, err
	}
	encoded := base64.RawStdEncoding.EncodeToString(key) + "\n"
	if err := os.WriteFile(keyPath, []byte(encoded), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

func encryptBlob(plain, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nil, nonce, plain, nil)
	out := encryptedBlob{
		Version:    "v1",
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(ciphertext),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func decryptBlob(data, key []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty encrypted blob")
	}
	var wrapped encryptedBlob
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Version != "v1" {
		return nil, fmt.Errorf("unsupported blob version: %s", wrapped.Version)
	}
	nonce, err := base64.RawStdEncoding.DecodeString(strings.TrimSpace(wrapped.Nonce))
	if err != nil {
		return nil, err
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(strings.TrimSpace(wrapped.Ciphertext))
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}
