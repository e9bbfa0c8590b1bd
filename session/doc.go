// Package session stores per-device refresh sessions in Redis and implements
// the atomic refresh-token rotation protocol with reuse detection.
package session
