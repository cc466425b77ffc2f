// Package evernote is a minimal client for the Evernote EDAM API.
//
// EDAM is Thrift (strict binary protocol) over HTTPS. Only the calls needed
// to validate a session and rename notebooks are implemented:
//
//   - UserStore.getUser, UserStore.getNoteStoreUrl
//   - NoteStore.getSyncState, NoteStore.listNotebooks, NoteStore.updateNotebook
//
// The NoteStore URL is resolved lazily through the UserStore on first use
// and cached for the lifetime of the Client.
package evernote
