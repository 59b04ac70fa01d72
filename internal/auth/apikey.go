// Package auth provides API key utilities for the ragescanner API server.
// Keys are generated with a recognizable prefix, stored only as bcrypt hashes
// in the configuration file, and checked against those hashes per request.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/bcrypt"
)

// API key generation and validation constants
const (
	// APIKeyLength is the length of the random part of an API key
	APIKeyLength = 32
	// APIKeyPrefix is the standard prefix for all API keys
	APIKeyPrefix = "rs"
	// BcryptCost is the bcrypt cost for hashing API keys
	BcryptCost = 12
	// BcryptMaxInputLength is the maximum input length for bcrypt (72 bytes)
	BcryptMaxInputLength = 72

	// verifiedCacheSize bounds how many accepted keys skip bcrypt on reuse
	verifiedCacheSize = 128
)

// GeneratedAPIKey contains a newly generated API key and its hash
type GeneratedAPIKey struct {
	Key       string `json:"key"`        // The actual API key (only shown once)
	Hash      string `json:"hash"`       // Value to put in api.api_keys
	KeyPrefix string `json:"key_prefix"` // Display-safe prefix
}

// GenerateAPIKey creates a new random API key together with its bcrypt hash
func GenerateAPIKey() (*GeneratedAPIKey, error) {
	randomBytes := make([]byte, APIKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}

	// Use base32 encoding for better readability (no ambiguous characters)
	randomPart := strings.ToLower(base32.StdEncoding.EncodeToString(randomBytes))
	if len(randomPart) > APIKeyLength {
		randomPart = randomPart[:APIKeyLength]
	}

	fullKey := fmt.Sprintf("%s_%s", APIKeyPrefix, randomPart)

	hash, err := HashAPIKey(fullKey)
	if err != nil {
		return nil, err
	}

	return &GeneratedAPIKey{
		Key:       fullKey,
		Hash:      hash,
		KeyPrefix: CreateDisplayPrefix(fullKey),
	}, nil
}

// HashAPIKey creates a bcrypt hash of an API key for storage in configuration
func HashAPIKey(apiKey string) (string, error) {
	return hashAPIKey(apiKey, BcryptCost)
}

func hashAPIKey(apiKey string, cost int) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("API key cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword(keyMaterial(apiKey), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}

	return string(hash), nil
}

// ValidateAPIKey checks if a provided API key matches the stored hash
func ValidateAPIKey(apiKey, storedHash string) bool {
	if apiKey == "" || storedHash == "" {
		return false
	}

	err := bcrypt.CompareHashAndPassword([]byte(storedHash), keyMaterial(apiKey))
	return err == nil
}

// keyMaterial applies the bcrypt input limit: longer keys are pre-hashed with SHA-256.
func keyMaterial(apiKey string) []byte {
	keyBytes := []byte(apiKey)
	if len(keyBytes) > BcryptMaxInputLength {
		sum := sha256.Sum256(keyBytes)
		keyBytes = sum[:]
	}
	return keyBytes
}

// IsValidAPIKeyFormat checks if an API key has the correct format
func IsValidAPIKeyFormat(apiKey string) bool {
	if !strings.HasPrefix(apiKey, APIKeyPrefix+"_") {
		return false
	}

	if len(apiKey) < 15 || len(apiKey) > 50 {
		return false
	}

	for _, char := range apiKey {
		if (char < 'a' || char > 'z') &&
			(char < 'A' || char > 'Z') &&
			(char < '0' || char > '9') &&
			char != '_' {
			return false
		}
	}

	return true
}

// CreateDisplayPrefix creates a safe-to-display prefix from a full API key
func CreateDisplayPrefix(apiKey string) string {
	if !IsValidAPIKeyFormat(apiKey) {
		return "invalid_key"
	}

	_, random, _ := strings.Cut(apiKey, "_")
	if len(random) >= 8 {
		return fmt.Sprintf("%s_%s...", APIKeyPrefix, random[:8])
	}
	return fmt.Sprintf("%s_%s...", APIKeyPrefix, random)
}

// KeyStore checks presented keys against a fixed set of bcrypt hashes.
// Accepted keys are remembered by digest so repeat requests skip bcrypt.
type KeyStore struct {
	hashes   []string
	verified *lru.Cache[[sha256.Size]byte, struct{}]
}

// NewKeyStore builds a store over hashes. Every entry must be a bcrypt hash.
func NewKeyStore(hashes []string) (*KeyStore, error) {
	for i, h := range hashes {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("api key %d is not a bcrypt hash: %w", i, err)
		}
	}

	cache, err := lru.New[[sha256.Size]byte, struct{}](verifiedCacheSize)
	if err != nil {
		return nil, err
	}

	return &KeyStore{
		hashes:   append([]string(nil), hashes...),
		verified: cache,
	}, nil
}

// Enabled reports whether any key is configured.
func (s *KeyStore) Enabled() bool {
	return len(s.hashes) > 0
}

// Authenticate reports whether apiKey matches one of the configured hashes.
func (s *KeyStore) Authenticate(apiKey string) bool {
	if apiKey == "" {
		return false
	}

	digest := sha256.Sum256([]byte(apiKey))
	if _, ok := s.verified.Get(digest); ok {
		return true
	}

	for _, h := range s.hashes {
		if ValidateAPIKey(apiKey, h) {
			s.verified.Add(digest, struct{}{})
			return true
		}
	}
	return false
}
