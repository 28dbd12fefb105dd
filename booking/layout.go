package booking

import (
	"sort"

	"golang.org/x/exp/maps"

	"cinebooker-cli/model"
)

// Row is one display row of the seat grid.
type Row struct {
	Label string
	Seats []model.Seat
}

// Layout groups seats by row label, orders rows lexicographically and seats by
// their column number. It only affects display.
func Layout(seats []model.Seat) []Row {
	groups := make(map[string][]model.Seat)
	for _, seat := range seats {
		row := seat.Row()
		groups[row] = append(groups[row], seat)
	}

	labels := maps.Keys(groups)
	sort.Strings(labels)

	rows := make([]Row, 0, len(labels))
	for _, label := range labels {
		row := groups[label]
		sort.SliceStable(row, func(i, j int) bool {
			ci, cj := row[i].Column(), row[j].Column()
			if ci != cj {
				return ci < cj
			}
			return row[i].SeatNumber < row[j].SeatNumber
		})
		rows = append(rows, Row{Label: label, Seats: row})
	}
	return rows
}
