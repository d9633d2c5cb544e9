// Package sync downloads and applies published releases on deployment hosts.
//
// It validates local files against checksums from a remote manifest, downloads
// required artifacts to a temporary directory, atomically applies them, and
// starts the launcher once the host is current.
package sync
