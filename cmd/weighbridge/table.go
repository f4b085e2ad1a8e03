package main

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"weighbridge/internal/weighment"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const timeLayout = "2006-01-02 15:04:05"

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func localTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}

func pendingTable(items []*weighment.PendingItem) string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			it.TransactionID,
			it.FarmerName,
			it.VehiclePlate,
			it.GrossWeight.String(),
			localTime(it.GrossDatetime),
		})
	}
	return renderTable(
		[]string{"Transaction", "Farmer", "Vehicle", "Gross", "Weighed at"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func historyTable(items []*weighment.TransactionDetail) string {
	rows := make([][]string, 0, len(items))
	for _, d := range items {
		rows = append(rows, []string{
			d.ID,
			d.FarmerName,
			d.VehiclePlate,
			d.GrossWeight.String(),
			d.TareWeight.Weight.String(),
			d.NetWeight.Weight.String(),
			localTime(d.TareDatetime.Time),
		})
	}
	return renderTable(
		[]string{"Transaction", "Farmer", "Vehicle", "Gross", "Tare", "Net", "Completed at"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

func detailTable(d *weighment.TransactionDetail) string {
	tare, net, tareAt := "-", "-", "-"
	if d.TareWeight.Valid {
		tare = d.TareWeight.Weight.String()
	}
	if d.NetWeight.Valid {
		net = d.NetWeight.Weight.String()
	}
	if d.TareDatetime.Valid {
		tareAt = localTime(d.TareDatetime.Time)
	}
	snapshot := "-"
	if d.SnapshotURL.Valid {
		snapshot = d.SnapshotURL.String
	}

	rows := [][]string{
		{"Transaction", d.ID},
		{"Status", string(d.Status)},
		{"Farmer", d.FarmerName},
		{"Vehicle", d.VehiclePlate},
		{"Gross", d.GrossWeight.String()},
		{"Gross at", localTime(d.GrossDatetime)},
		{"Tare", tare},
		{"Tare at", tareAt},
		{"Net", net},
		{"Snapshot", snapshot},
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}
