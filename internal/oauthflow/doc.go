// Package oauthflow runs Evernote's three-legged OAuth 1.0a flow from the
// command line:
//
//  1. request temporary credentials with a localhost callback URL
//  2. open the user's browser on the authorize page
//  3. capture the oauth_verifier from the redirect with a one-shot local server
//  4. exchange temporary credentials and verifier for an access token
//  5. persist the access token in a tokenstore.TokenStore
//
// Steps run strictly in order and nothing is retried here; callers decide
// whether to run the flow again.
package oauthflow
