package main

import "github.com/StinkyLord/cad-bom-builder/cmd"

func main() {
	cmd.Execute()
}
