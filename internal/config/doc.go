// Package config loads, validates, and persists the deployment manifest
// shared by all hawkeye binaries.
//
// The manifest describes the target application's filesystem layout (working
// directories, env files, venv), the container deployment, and the release
// folder used by the sync tool. Every field has a built-in default matching a
// fresh application checkout, so the binaries run without any manifest at all.
package config
