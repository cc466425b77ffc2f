package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// TokenStore reads and writes the access token to persistent storage.
type TokenStore interface {
	// Read returns the stored token, or an empty string if none has been stored.
	// Returns error if the stored document is unreadable or malformed.
	Read(ctx context.Context) (string, error)

	// Write persists the token, overwriting any previous value.
	Write(ctx context.Context, token string) error
}

// document is the on-disk representation shared by all backends.
type document struct {
	AccessToken string `json:"accessToken"`
}

func encode(token string) ([]byte, error) {
	return json.Marshal(document{AccessToken: token})
}

func decode(data []byte) (string, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("malformed token document: %w", err)
	}
	return doc.AccessToken, nil
}
