// Package testutil contains helpers used across tests to script model
// providers and assert on the turns they were shown. They are not intended
// for production usage.
package testutil
