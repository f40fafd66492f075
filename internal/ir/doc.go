// Package ir provides the dynamic value model used for declarative states
// and actions, together with its canonical JSON form.
//
// ir imports nothing internal; every package that needs to serialize,
// compare or hash state goes through it.
//
// Key design constraints:
//   - NO float kind anywhere: use int64 for numbers
//   - Canonical JSON sorts keys by UTF-16 code units and NFC-normalizes
//     strings, so hashes are stable across platforms
//   - Values are treated as immutable; reducers Clone before modifying
package ir
