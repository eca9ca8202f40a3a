package main

import (
	// Register the platform drivers.
	_ "mediagrab/pkg/fans"
	_ "mediagrab/pkg/x"
)

func main() {
	Execute()
}
