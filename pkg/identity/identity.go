// Package identity maps user-supplied email addresses to storage-safe
// keys. A path segment in the blob store cannot contain "." or "@", so
// every storage path is built from the formatted form.
package identity

import "strings"

var formatter = strings.NewReplacer(".", "-", "@", "-")

// FormatKey returns the storage-safe key for an email address by
// replacing "." and "@" with "-". Deterministic, no failure mode.
func FormatKey(email string) string {
	return formatter.Replace(email)
}
