// Command comicbot posts the daily comic strip to Discord guilds, collects
// 1-5 ratings and closes the polls before the next strip.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "comicbot:", err)
		os.Exit(1)
	}
}
