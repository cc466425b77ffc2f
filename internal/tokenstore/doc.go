// Package tokenstore persists the Evernote access token between runs.
//
// Two backends share the same JSON document, {"accessToken": "<token>"}:
//   - File: local filesystem storage with atomic writes and secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//
// A missing token is not an error: Read returns an empty string so callers can
// fall back to the OAuth flow. A document that cannot be parsed is an error.
package tokenstore
