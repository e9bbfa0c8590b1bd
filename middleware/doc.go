// Package middleware provides net/http glue for the engine's access guard.
package middleware
