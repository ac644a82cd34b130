// Package cachekey builds deterministic storage keys from ordered tokens.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

const namespaceSeparator = ":"

// Key is an ordered sequence of tokens. The first token is the namespace.
// Two keys are equal only if all tokens are equal and in the same order.
type Key []string

// New returns a key in the given namespace.
func New(namespace string, tokens ...string) Key {
	return append(Key{namespace}, tokens...)
}

// With returns a copy of the key with the tokens appended.
func (k Key) With(tokens ...string) Key {
	key := make(Key, 0, len(k)+len(tokens))
	key = append(key, k...)
	return append(key, tokens...)
}

// Namespace returns the first token of the key.
func (k Key) Namespace() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// Prefix returns the storage prefix shared by all keys of the namespace.
func (k Key) Prefix() string {
	return k.Namespace() + namespaceSeparator
}

// String returns the storage key: the namespace followed by the SHA-256 of the
// JSON encoded tokens. The JSON array keeps token boundaries, so that
// ["a,b"] and ["a", "b"] differ.
func (k Key) String() string {
	data, err := json.Marshal([]string(k))
	if err != nil {
		// a []string always marshals
		panic(err)
	}
	sum := sha256.Sum256(data)
	return k.Prefix() + hex.EncodeToString(sum[:])
}

// Readable returns the tokens joined for logging.
func (k Key) Readable() string {
	return strings.Join(k, " ")
}
