// Package gantt converts schedule snapshots to the record shape consumed by Gantt chart
// widgets and back.
package gantt

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/ignatij/goschedule/pkg/models"
	"github.com/pkg/errors"
)

// CriticalClass marks records of tasks on the critical path.
const CriticalClass = "critical"

// Record is one bar of a Gantt chart. Start and End are YYYY-MM-DD; End is exclusive, like
// the earliest finish it comes from. Dependencies is the comma-joined predecessor id list.
type Record struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	Progress     float64 `json:"progress"`
	Dependencies string  `json:"dependencies"`
	CustomClass  string  `json:"custom_class,omitempty"`
}

// Encode maps every task of the snapshot to a record, keeping snapshot order.
func Encode(s *models.ScheduleSnapshot) []Record {
	records := make([]Record, 0, len(s.Tasks))
	for _, ts := range s.Tasks {
		r := Record{
			ID:           ts.TaskID,
			Name:         ts.Name,
			Start:        ts.EarliestStart.Format(models.DateLayout),
			End:          ts.EarliestFinish.Format(models.DateLayout),
			Progress:     ts.Progress,
			Dependencies: strings.Join(ts.Dependencies, ","),
		}
		if ts.OnCriticalPath {
			r.CustomClass = CriticalClass
		}
		records = append(records, r)
	}
	return records
}

// Decode rebuilds the schedule entries carried by records: id, name, earliest dates,
// duration, progress, critical flag and sorted dependency ids. Latest dates and float are
// not part of the record format and stay zero.
func Decode(records []Record) ([]models.TaskSchedule, error) {
	out := make([]models.TaskSchedule, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			return nil, errors.New("gantt record without id")
		}
		start, err := models.ParseDate(r.Start)
		if err != nil {
			return nil, errors.Wrapf(err, "record %s: invalid start %q", r.ID, r.Start)
		}
		end, err := models.ParseDate(r.End)
		if err != nil {
			return nil, errors.Wrapf(err, "record %s: invalid end %q", r.ID, r.End)
		}
		if end.Before(start) {
			return nil, errors.Errorf("record %s: end %s before start %s", r.ID, r.End, r.Start)
		}
		out = append(out, models.TaskSchedule{
			TaskID:         r.ID,
			Name:           r.Name,
			Dependencies:   splitDependencies(r.Dependencies),
			EarliestStart:  start,
			EarliestFinish: end,
			DurationDays:   models.DurationDays(start, end),
			OnCriticalPath: r.CustomClass == CriticalClass,
			Progress:       r.Progress,
		})
	}
	return out, nil
}

// Write encodes the snapshot as an indented JSON array of records.
func Write(w io.Writer, s *models.ScheduleSnapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Encode(s))
}

// Read parses a JSON array of records.
func Read(r io.Reader) ([]models.TaskSchedule, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "decode gantt records")
	}
	return Decode(records)
}

func splitDependencies(s string) []string {
	ids := []string{}
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
