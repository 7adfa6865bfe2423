package probedb

import (
	"strings"

	"github.com/olekukonko/tablewriter"
)

// DumpTable renders the cache's (ttl, flow-id) -> interface index as a
// table, for debug logging.
func (db *DB) DumpTable() string {
	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader([]string{"ttl", "flow", "ip", "rtt avg"})
	table.AppendBulk(db.DumpRows())
	table.Render()
	return sb.String()
}
