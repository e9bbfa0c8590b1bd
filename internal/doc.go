// Package internal holds the randomness and token codec primitives shared
// by the engine packages.
package internal
