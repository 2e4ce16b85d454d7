// SPDX-License-Identifier: MPL-2.0

// tplcache concatenates AngularJS templates into a $templateCache module.
package main

import cmd "github.com/invowk/tplcache/cmd/tplcache"

func main() {
	cmd.Execute()
}
