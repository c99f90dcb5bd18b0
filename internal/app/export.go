package app

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
)

// WriteCSV writes the per-player, per-question correctness matrix. Cells are 1 for correct,
// 0 for incorrect and NA when the player did not answer or the question was never closed.
func (s *Session) WriteCSV(w io.Writer) error {
	s.mu.Lock()
	header := []string{"nickname", "score", "streak"}
	for i := range s.set.Questions {
		header = append(header, "Q"+strconv.Itoa(i+1))
	}
	byIndex := make(map[int]int, len(s.results))
	for i, r := range s.results {
		byIndex[r.QuestionIndex] = i
	}
	rows := make([][]string, 0, len(s.order))
	for _, id := range s.order {
		p := s.players[id]
		row := []string{csvSafe(p.Nickname), strconv.Itoa(p.Score), strconv.Itoa(p.Streak)}
		for qi, q := range s.set.Questions {
			cell := "NA"
			if ri, ok := byIndex[qi]; ok {
				if choice, answered := s.results[ri].Answers[id]; answered {
					cell = "0"
					if choice == q.CorrectIndex {
						cell = "1"
					}
				}
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	s.mu.Unlock()

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// csvSafe keeps spreadsheet applications from evaluating player-supplied text as a formula.
func csvSafe(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}
