// Command kanjisrs is a spaced-repetition kanji trainer served over MCP.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
