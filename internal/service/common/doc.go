// Package common holds helpers shared by several services.
//
// It provides detection of the current system actor (hostname/username) for
// audit purposes, the yes/no confirmation prompt used before destructive
// deployment steps, and the Runner abstraction over external command
// execution.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
