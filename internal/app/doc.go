// Package app owns the measurement-campaign lifecycle. It defines the App
// struct, its configuration, and the run loop that stages derived jobs and
// reports their measurements, decoupled from any specific entrypoint like a
// CLI.
package app
