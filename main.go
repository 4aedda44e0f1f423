package main

import (
	"fmt"
	"os"

	"github.com/AnyUserName/sizefit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sizefit:", err)
		os.Exit(1)
	}
}
