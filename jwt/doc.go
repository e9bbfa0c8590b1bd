// Package jwt issues and validates the short-lived HS256 access tokens that
// carry the authenticated user and device.
package jwt
