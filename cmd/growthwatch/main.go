package main

import (
	"growthwatch/cmd/growthwatch/cmd"
)

func main() {
	cmd.Execute()
}
