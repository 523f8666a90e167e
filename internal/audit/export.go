package audit

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

// ExportCSV renders events as CSV for offline review. State payloads are
// included verbatim; consumers parse them as JSON.
func ExportCSV(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"seq", "occurred_at", "actor", "action", "entity_type", "entity_id", "before", "after", "event_hash"}); err != nil {
		return nil, err
	}
	for _, e := range events {
		record := []string{
			strconv.FormatInt(e.Seq, 10),
			e.OccurredAt.UTC().Format(time.RFC3339Nano),
			e.ActorUserID.String(),
			e.Action,
			e.EntityType,
			e.EntityID,
			string(e.BeforeState),
			string(e.AfterState),
			e.EventHash,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
