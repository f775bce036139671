// Package state holds short-lived per-user data with expiry, such as
// in-progress conversations.
package state
