// Package cli provides the interactive mycocore command-line client.
//
// It wires configuration, the local database, the API client, the session
// store, the event channel and log, the realtime supervisor, the refresh
// coordinator and the PIN gate, then runs a REPL over them. Typical flow:
// restore the previous session, unlock it with the PIN, watch events arrive.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See NewApp and runREPL for details.
package cli
