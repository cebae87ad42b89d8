package main

import (
	"runtime"

	"flow-player/cmd"
)

func init() {
	// SDL requires its video calls on the main thread
	runtime.LockOSThread()
}

func main() {
	cmd.Execute()
}
