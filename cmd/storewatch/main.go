package main

import (
	"storewatch/internal/cli"
)

func main() {
	cli.Execute()
}
