// The main package for the unirag executable.
package main

import (
	"github.com/HiiiiiPritam/NITJSR-Chatbot/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
