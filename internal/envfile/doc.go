// Package envfile implements the environment-file contract between the
// deployment tools and the application.
//
// The application reads its secrets from a dotenv file at startup. The tools
// create that file from a repository template when it is absent, never
// overwrite an existing one, and audit it for unfilled placeholder values
// before anything is built or started.
package envfile
