package models

import (
	"strings"
	"time"
)

// DependencyType is the CPM relationship between a predecessor and a successor.
type DependencyType string

const (
	FinishToStart  DependencyType = "FS"
	StartToStart   DependencyType = "SS"
	FinishToFinish DependencyType = "FF"
	StartToFinish  DependencyType = "SF"
)

func (t DependencyType) Valid() bool {
	switch t {
	case FinishToStart, StartToStart, FinishToFinish, StartToFinish:
		return true
	}
	return false
}

// ParseDependencyType accepts the short codes and the long names used by the task modal
// ("finish_to_start", "Finish-to-Start"). An empty string yields FS, the form default.
func ParseDependencyType(s string) (DependencyType, error) {
	norm := strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s)))
	switch norm {
	case "", "FS", "FINISH_TO_START":
		return FinishToStart, nil
	case "SS", "START_TO_START":
		return StartToStart, nil
	case "FF", "FINISH_TO_FINISH":
		return FinishToFinish, nil
	case "SF", "START_TO_FINISH":
		return StartToFinish, nil
	}
	return "", NewError(ErrInvalidDependencyType, "unknown dependency type '%s'", s)
}

// Dependency is a typed edge: Successor is constrained by Predecessor, shifted by Lag days.
type Dependency struct {
	ID            string         `json:"id" db:"id"`
	ProjectID     int64          `json:"project_id" db:"project_id"`
	PredecessorID string         `json:"predecessor_id" db:"predecessor_id"`
	SuccessorID   string         `json:"successor_id" db:"successor_id"`
	Type          DependencyType `json:"type" db:"type"`
	Lag           int            `json:"lag" db:"lag"` // Days; negative is lead time
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// SameRelation reports whether d and o link the same ordered pair with the same type.
func (d Dependency) SameRelation(o Dependency) bool {
	return d.PredecessorID == o.PredecessorID && d.SuccessorID == o.SuccessorID && d.Type == o.Type
}
