package main

import (
	cmd "github.com/kerbaras/mangago/cmd/mangago"
)

func main() {
	cmd.Execute()
}
