// Package export writes schedule snapshots to spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/schedsim/schedsim/sim"
)

// Sheet names in the workbook.
const (
	SheetSummary     = "Summary"
	SheetActivities  = "Activities"
	SheetBatches     = "Batches"
	SheetResources   = "Resources"
	SheetLots        = "Lots"
	SheetUnscheduled = "Unscheduled"
)

var (
	summaryHeadings    = []string{"Scenario", "Clock", "Horizon", "Events", "Cancelled", "Passes"}
	activityHeadings   = []string{"Job", "Order", "Operation", "Activity", "Resource", "Batch", "Start", "End", "Processing", "State", "Materials"}
	batchHeadings      = []string{"Batch", "Resource", "Key", "Start", "End", "Activities"}
	resourceHeadings   = []string{"Resource", "Start", "End", "Kind"}
	lotHeadings        = []string{"Area", "Item", "Lot", "Lot code", "On hand", "Remaining", "Produced", "Expires", "Wear"}
	unscheduledHeading = []string{"Job", "Order", "Operation", "Activity"}
)

// Workbook builds a workbook with one sheet per view of snap.
func Workbook(snap *sim.ScheduleSnapshot) (*excelize.File, error) {
	f := excelize.NewFile()
	w := &writer{f: f}

	// NewFile starts with Sheet1; rename it rather than leave it empty.
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	w.table(SheetSummary, summaryHeadings, [][]interface{}{{
		snap.Scenario, snap.Clock, snap.Horizon, snap.Stats.Events, snap.Stats.Cancelled, snap.Stats.Passes,
	}})

	var rows [][]interface{}
	for _, a := range snap.Activities {
		rows = append(rows, []interface{}{
			a.Key.Job, a.Key.Order, a.Key.Operation, a.Key.Activity,
			a.Resource, optionalID(a.Batch), placed(a, a.Start), placed(a, a.End),
			a.ProcessingTicks, activityState(a), materials(a.Allocations),
		})
	}
	w.sheet(SheetActivities, activityHeadings, rows)

	rows = nil
	for _, b := range snap.Batches {
		keys := make([]string, len(b.Activities))
		for i, k := range b.Activities {
			keys[i] = k.String()
		}
		rows = append(rows, []interface{}{b.ID, b.Resource, b.Key, b.Start, b.End, strings.Join(keys, "\n")})
	}
	w.sheet(SheetBatches, batchHeadings, rows)

	rows = nil
	for _, r := range snap.Resources {
		for _, iv := range r.Intervals {
			rows = append(rows, []interface{}{r.ID, iv.Start, iv.End, iv.Kind.String()})
		}
	}
	w.sheet(SheetResources, resourceHeadings, rows)

	rows = nil
	for _, l := range snap.Lots {
		rows = append(rows, []interface{}{
			l.Area, l.Item, l.ID, l.LotCode,
			l.OnHand.InexactFloat64(), l.Remaining.InexactFloat64(),
			l.ProductionTick, optionalID(l.ExpirationTick), l.Wear,
		})
	}
	w.sheet(SheetLots, lotHeadings, rows)

	rows = nil
	for _, k := range snap.Unscheduled {
		rows = append(rows, []interface{}{k.Job, k.Order, k.Operation, k.Activity})
	}
	w.sheet(SheetUnscheduled, unscheduledHeading, rows)

	if w.err != nil {
		f.Close()
		return nil, w.err
	}
	return f, nil
}

// WriteFile saves the workbook for snap at path.
func WriteFile(snap *sim.ScheduleSnapshot, path string) error {
	f, err := Workbook(snap)
	if err != nil {
		return fmt.Errorf("building workbook: %w", err)
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

// Write streams the workbook for snap to out.
func Write(snap *sim.ScheduleSnapshot, out io.Writer) error {
	f, err := Workbook(snap)
	if err != nil {
		return fmt.Errorf("building workbook: %w", err)
	}
	defer f.Close()
	if err := f.Write(out); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// writer keeps the first error so the sheet builders read straight through.
type writer struct {
	f   *excelize.File
	err error
}

func (w *writer) sheet(name string, headings []string, rows [][]interface{}) {
	if w.err != nil {
		return
	}
	if _, err := w.f.NewSheet(name); err != nil {
		w.err = err
		return
	}
	w.table(name, headings, rows)
}

func (w *writer) table(name string, headings []string, rows [][]interface{}) {
	if w.err != nil {
		return
	}
	header := make([]interface{}, len(headings))
	for i, h := range headings {
		header[i] = h
	}
	w.row(name, 1, header)
	for i, r := range rows {
		w.row(name, i+2, r)
	}
	if w.err == nil && len(headings) > 0 {
		last, _ := excelize.ColumnNumberToName(len(headings))
		w.err = w.f.AutoFilter(name, "A1:"+last+"1", nil)
	}
}

func (w *writer) row(name string, n int, values []interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(name, cell, &values)
}

func activityState(a sim.ActivityView) string {
	switch {
	case a.Finished:
		return "finished"
	case a.InProcess:
		return "in-process"
	case !a.Scheduled:
		return "unscheduled"
	case a.Locked:
		return "locked"
	case a.Anchored:
		return "anchored"
	default:
		return "scheduled"
	}
}

// placed blanks ticks of unscheduled activities.
func placed(a sim.ActivityView, tick int64) interface{} {
	if !a.Scheduled {
		return ""
	}
	return tick
}

func optionalID(v int64) interface{} {
	if v == 0 {
		return ""
	}
	return v
}

func materials(allocs []sim.AllocationView) string {
	lines := make([]string, len(allocs))
	for i, al := range allocs {
		lines[i] = fmt.Sprintf("%s %s/%s %s", al.Qty.String(), al.Area, al.Lot, al.Item)
	}
	return strings.Join(lines, "\n")
}
