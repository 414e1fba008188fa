//go:build windows

package main

import (
	"os"
	"os/signal"
)

// notifySignals registers the OS signals that stop a run at the next
// step boundary. On Windows only os.Interrupt (Ctrl+C) exists.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
