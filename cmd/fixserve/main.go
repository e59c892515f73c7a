// fixserve - local test-fixture HTTP server.
package main

import "github.com/fixserve/fixserve/pkg/cli"

func main() {
	cli.Execute()
}
