// main is the entrypoint for the lockwatch CLI.
package main

import "github.com/dbscope/lockwatch/cmd"

func main() {
	cmd.Execute()
}
