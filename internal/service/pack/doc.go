// Package pack prepares the release manifest consumed by the sync tool.
//
// It computes checksums for the deployment bundle, records the executable to
// start after a release is applied, and persists deployment settings. The
// resulting YAML is uploaded to the release folder served to hosts.
package pack
