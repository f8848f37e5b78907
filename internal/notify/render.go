package notify

import (
	"fmt"
	"growthwatch/internal/snapshot"
	"growthwatch/lib/extract"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

func NewTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

func RenderRecords(records []extract.Record) string {
	t := NewTable()
	t.AppendHeader(table.Row{"#", "Name", "Growth"})
	for i, r := range records {
		t.AppendRow(table.Row{i + 1, r.Name, r.Growth})
	}
	return t.Render()
}

func signed(n int64) string {
	if n > 0 {
		return "+" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// RenderChanges renders one row for every entry in the changes, grouped by
// kind.
func RenderChanges(changes snapshot.Changes) string {
	t := NewTable()
	t.AppendHeader(table.Row{"Change", "Name", "Growth"})
	for _, r := range changes.Added {
		t.AppendRow(table.Row{"added", r.Name, r.Growth})
	}
	for _, r := range changes.Removed {
		t.AppendRow(table.Row{"removed", r.Name, r.Growth})
	}
	for _, c := range changes.Changed {
		t.AppendRow(table.Row{
			"changed",
			c.Name,
			fmt.Sprintf("%d -> %d (%s)", c.From, c.To, signed(c.To-c.From)),
		})
	}
	for _, r := range changes.Renamed {
		t.AppendRow(table.Row{
			"renamed",
			fmt.Sprintf("%s -> %s", r.From.Name, r.To.Name),
			r.To.Growth,
		})
	}
	return t.Render()
}
