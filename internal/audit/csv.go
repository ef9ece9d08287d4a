package audit

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/example/house-heist/internal/game"
)

var csvHeader = []string{"round", "conn", "player", "time", "operation", "target", "detail"}

// WriteCSV exports entries in the operator's history layout: round, peer,
// player, wall-clock time and operation, followed by the target and detail.
func WriteCSV(w io.Writer, entries []game.AuditEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		target := ""
		if e.Target != nil {
			target = e.Target.String()
		}
		rec := []string{
			strconv.FormatUint(e.Round, 10),
			strconv.FormatInt(int64(e.Conn), 10),
			string(e.Player),
			e.At.Format("15:04:05"),
			e.Operation,
			target,
			e.Detail,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
