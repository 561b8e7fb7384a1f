package main

import "Memora/client/memora-cli/cmd"

func main() {
	cmd.Execute()
}
