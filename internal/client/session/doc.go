// Package session holds the authenticated principal of one client process.
//
// Store keeps an in-memory Session, mirrors its access token into a durable
// slot shared with the other client processes of the same user, and arms or
// disarms the API authorization header. The secondary-factor flag lives
// only in memory and is never restored.
package session
