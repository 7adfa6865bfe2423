package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/golang/glog"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/gian-teixeira/tmp-remaprt/iface"
	"github.com/gian-teixeira/tmp-remaprt/path"
	"github.com/gian-teixeira/tmp-remaprt/probe"
	"github.com/gian-teixeira/tmp-remaprt/remap"
)

var (
	ifaceName string
	oldHopStr string
	newHopStr string
	dstFlag   string
	startTTL  int
	logBase   string
	icmpID    int
	debugDump bool
)

var rootCmd = &cobra.Command{
	Use:   "remaprt",
	Short: "Remap a measured path around a diverged TTL",
	Long: `remaprt takes a previously measured IP path and a TTL near which it
is suspected to have changed, and issues targeted probes to discover only
the diverged segment of the current path.`,
	RunE: runRemap,
}

func init() {
	rootCmd.Flags().StringVarP(&ifaceName, "iface", "i", "", "capture interface (required)")
	rootCmd.Flags().StringVarP(&oldHopStr, "old", "o", "", "old path, in hop notation (required)")
	rootCmd.Flags().StringVarP(&dstFlag, "dst", "d", "", "destination IPv4 address (required)")
	rootCmd.Flags().IntVarP(&startTTL, "start-ttl", "t", 0, "one-based starting TTL (required)")
	rootCmd.Flags().StringVarP(&logBase, "log-base", "l", "", "log file prefix (required)")
	rootCmd.Flags().IntVarP(&icmpID, "icmp-id", "x", 0, "16-bit ICMP identifier (required)")
	rootCmd.Flags().StringVarP(&newHopStr, "new", "n", "", "new path, in hop notation: enables offline replay, no probes issued")
	rootCmd.Flags().BoolVar(&debugDump, "debug", false, "log the probe cache as a table after the search completes")

	for _, name := range []string{"iface", "old", "dst", "start-ttl", "log-base", "icmp-id"} {
		rootCmd.MarkFlagRequired(name)
	}
}

func runRemap(cmd *cobra.Command, args []string) error {
	if logBase != "" {
		if lookup := flag.Lookup("log_dir"); lookup != nil {
			lookup.Value.Set(logBase)
		}
	}

	dstIP := net.ParseIP(dstFlag)
	if dstIP == nil {
		return fail(fmt.Errorf("remaprt: bad destination address %q", dstFlag))
	}
	dst, ok := iface.IPToUint32(dstIP)
	if !ok {
		return fail(fmt.Errorf("remaprt: destination %q is not IPv4", dstFlag))
	}

	oldPath, err := path.ParseHops(oldHopStr, dst)
	if err != nil {
		return fail(fmt.Errorf("remaprt: parsing old path: %w", err))
	}

	var newPath *path.Path
	if newHopStr != "" {
		newPath, err = path.ParseHops(newHopStr, dst)
		if err != nil {
			return fail(fmt.Errorf("remaprt: parsing new path: %w", err))
		}
	}

	var oracle *probe.Oracle
	if newPath == nil {
		if os.Geteuid() != 0 {
			return fail(fmt.Errorf("remaprt: raw ICMP sockets require root"))
		}
		oracle, err = probe.New(ifaceName, icmpID)
		if err != nil {
			return fail(fmt.Errorf("remaprt: opening probe oracle: %w", err))
		}
		defer oracle.Close()
	}

	var driverOracle remap.Oracle
	if oracle != nil {
		driverOracle = oracle
	}

	driver := remap.NewDriver(oldPath, newPath, driverOracle)
	result := driver.Run(startTTL)
	if result == nil {
		return fail(fmt.Errorf("remaprt: remap search produced no result"))
	}

	glog.Infof("remaprt: measured %d ttls, %d probes", driver.MeasuredTTLCount(), driver.TotalProbes())
	if debugDump {
		glog.Infof("remaprt: probe cache:\n%s", driver.Cache().DumpTable())
	}
	fmt.Printf("%d %s\n", driver.TotalProbes(), result.String())
	return nil
}

// fail renders err in red when stderr is a terminal, matching the
// dependency pack's convention of gating color on isatty rather than
// pulling in a standalone color library for this one call site.
func fail(err error) error {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return fmt.Errorf("\x1b[31m%v\x1b[0m", err)
	}
	return err
}
