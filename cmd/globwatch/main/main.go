// SPDX-License-Identifier: MPL-2.0

// Command globwatch streams glob-filtered file change events from the
// command line.
package main

import "globwatch/cmd/globwatch"

func main() {
	cmd.Execute()
}
