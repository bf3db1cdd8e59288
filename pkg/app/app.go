// Package app defines the runtime contract shared by the relayer's
// executables. cmd/* binaries start components through it without depending
// on their wiring.
package app

// Runner is a runnable application component. Run blocks until the
// component stops.
type Runner interface {
	Run() error
}
