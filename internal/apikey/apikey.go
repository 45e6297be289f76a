// Package apikey generates API keys. A raw key is shown once; only its bcrypt hash
// and its first PrefixLen characters are stored.
package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/aigrader/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	// Marker starts every raw key.
	Marker = "ag_"
	// PrefixLen is the number of leading characters stored in clear for lookup.
	PrefixLen = 8

	secretBytes = 24
)

var validScopes = map[string]bool{
	models.ScopeAdmin:   true,
	models.ScopePredict: true,
}

// ValidateScopes rejects unknown scope names.
func ValidateScopes(scopes []string) error {
	if len(scopes) == 0 {
		return fmt.Errorf("at least one scope is required")
	}
	for _, s := range scopes {
		if !validScopes[s] {
			return fmt.Errorf("unknown scope %q: must be one of %s, %s", s, models.ScopeAdmin, models.ScopePredict)
		}
	}
	return nil
}

// Generate creates a new key for tenantID. The returned raw key must be handed to
// the caller; it cannot be recovered from the stored record.
func Generate(tenantID uuid.UUID, name string, scopes []string) (string, *models.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, fmt.Errorf("name is required")
	}
	if err := ValidateScopes(scopes); err != nil {
		return "", nil, err
	}

	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generating key: %w", err)
	}
	raw := Marker + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hashing key: %w", err)
	}

	now := time.Now().UTC()
	return raw, &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:PrefixLen],
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Matches reports whether raw is the key stored as key.
func Matches(key *models.APIKey, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(raw)) == nil
}
