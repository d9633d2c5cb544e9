// Package compose drives the containerized deployment lifecycle.
//
// Every operation preflights the container engine first; operations that
// build or start the application additionally pass the env-file gate, which
// prompts for confirmation when the template placeholder is still present.
// The actual work is delegated to `docker compose` with the configured
// compose file and project name.
package compose
