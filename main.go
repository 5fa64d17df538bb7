// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/trondev/trondev/cmd/trondev"

func main() {
	cmd.Execute()
}
