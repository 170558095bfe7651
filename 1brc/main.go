// Command obrc prints min/avg/max temperature per station for a file of
// `name;value\n` measurements.
package main

import (
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
