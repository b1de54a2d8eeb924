package main

import (
	"fmt"
	"os"

	"github.com/Aalibrarytechnologies/library-management-system/app"
)

var exit = os.Exit

func main() {
	var app app.App
	err := app.Run(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		exit(1)
	}
}
