// Package cli holds the terminal presentation helpers of evault: error
// types with actionable guidance, go-pretty tables for repository data and a
// progress spinner for waiting on sign-in.
package cli
