// Package main is the tofranger command itself.
package main

import (
	"log"
	"os"

	"github.com/viam-modules/vl53l3cx/cli"
)

func main() {
	if err := cli.NewApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
