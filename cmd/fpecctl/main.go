// Command fpecctl erases and programs STM32F3 internal flash through a
// serial register bridge, or against the built-in simulator.
//
// Usage:
//
//	fpecctl --port /dev/ttyACM0 erase 0x08004000
//	fpecctl --port /dev/ttyACM0 program 0x08004000 0xDEADBEEF
//	fpecctl --sim --debug program 0x08004000 0xDEADBEEF
package main

import "os"

func main() {
	err := rootCmd.Execute()
	closeTarget()
	if err != nil {
		os.Exit(1)
	}
}
