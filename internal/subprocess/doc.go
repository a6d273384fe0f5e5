// Package subprocess launches provider services as child processes.
//
// A Launcher implements binding.Opener: binding a component starts the
// configured executable and speaks the framed message protocol over its
// stdin and stdout. Stderr lines are logged. When the process exits its
// stdout reaches EOF, which the stream binder reports as a disconnect.
package subprocess
