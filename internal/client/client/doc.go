// Package client contains the backend API collaborator of the session client.
//
// # Overview
//
// The package provides:
//  1. The API contract (see the Client interface): login, refresh, profile,
//     logout, PIN verification and the profile-change endpoints.
//  2. A REST implementation (see HTTPClient) holding the refresh credential
//     in a cookie jar, arming the access token as a bearer header, and
//     replaying a request once after a 401 when an UnauthorizedHook is set.
//  3. Local persistence bootstrap (OpenDatabase, RunMigrations) applying
//     the embedded goose migrations to the SQLite file.
//
// # Error Handling
//
// Every failed call returns an *APIError whose Kind is one of
// KindUnauthorized, KindBadRequest, KindNetwork or KindUnknown. The error
// matches the sentinels ErrUnauthorized, ErrBadRequest, ErrUnavailable and
// ErrUnknown with errors.Is.
package client
