// Package setup bootstraps a host for the non-container deployment.
//
// It gates on the interpreter version, creates the isolated environment and
// working directories if absent, installs declared dependencies, and prepares
// the env file from its template. Every step is idempotent: a second run
// creates nothing new and overwrites nothing.
package setup
