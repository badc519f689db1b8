// Package cli provides the interactive drive command-line client.
//
// It wires configuration, the local durable cache, the reconciling store,
// and the upload queue behind an interactive REPL. Typical flow: prompt for
// credentials, warm the view from the cache and the server, and execute user
// commands while upload progress is printed asynchronously.
//
// Key features:
//   - Login / Register / Logout
//   - Browse folders, trash, shared and starred scopes
//   - Encrypted uploads with per-task progress and retry
//   - Folder management: mkdir, rename, mv, trash, restore, rm
//   - Sharing and starring
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
