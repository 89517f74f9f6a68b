// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing raw event scripts, transcripts and
// scripted models, and when asserting properties of canonical event streams.
// They are not intended for production usage.
package testutil
