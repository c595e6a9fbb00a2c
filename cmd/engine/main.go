// Command engine is the autonomy engine's entry point: it parses the
// CLI surface spec §6 names and hands off to the cobra command tree in
// github.com/forgepulse/autonomy-engine/cmd.
package main

import "github.com/forgepulse/autonomy-engine/cmd"

func main() {
	cmd.Execute()
}
