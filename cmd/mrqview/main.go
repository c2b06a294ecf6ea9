// The mrqview command runs the Marquee viewer agent: it keeps one
// endpoint's rendered content synchronized with authority schedule state.
package main

import "github.com/marqueehq/marquee/internal/mrqview/cmd"

func main() {
	cmd.Execute()
}
