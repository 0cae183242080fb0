// Command pairvault is the device-side tool: it scans tokens and seals or
// opens the pair's memory locally, so tokens and plaintext never leave the
// machine running it.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
