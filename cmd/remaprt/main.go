// Command remaprt remaps a previously measured IP path around a TTL
// where it is suspected to have changed, probing only the diverged
// segment.
//
// See SPEC_FULL.md §6 / spec.md §6 for the flag contract.
package main

import (
	"fmt"
	"os"

	"github.com/golang/glog"
)

func main() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
