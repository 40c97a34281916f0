// Package minter derives stable entity identifiers for harvested records.
package minter

import (
	"crypto/md5"
	"encoding/hex"
)

// separator keeps ("ab", "c") and ("a", "bc") from colliding. It is
// written even when the provider is empty, so an unnamed provider cannot
// collide with a named one.
const separator = "\x1f"

// Minter derives an identifier from a source identifier and provider name.
type Minter interface {
	Mint(sourceID, provider string) string
}

// MD5Minter mints lowercase hex MD5 digests namespaced by provider.
type MD5Minter struct{}

// Mint implements Minter.
func (MD5Minter) Mint(sourceID, provider string) string {
	return Mint(sourceID, provider)
}

// Mint returns the identifier for sourceID as harvested from provider.
// The result is identical for identical inputs, so re-harvesting an item
// overwrites the entity stored under it.
func Mint(sourceID, provider string) string {
	sum := md5.Sum([]byte(provider + separator + sourceID))
	return hex.EncodeToString(sum[:])
}
