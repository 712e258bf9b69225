package models

import "time"

// Result codes as printed by the portal's result column.
const (
	ResultPass     = "P"
	ResultFail     = "F"
	ResultAbsent   = "A"
	ResultWithheld = "W"
)

// Grade classifications derived from (result, total).
const (
	GradeFCD    = "FCD"
	GradeFC     = "FC"
	GradeSC     = "SC"
	GradeFail   = "FAIL"
	GradeAbsent = "ABSENT"
)

// Mark is one student's score in one subject within a section.
// At most one row exists per (stud_id, subject_id).
type Mark struct {
	MarkID    int64     `json:"mark_id"`
	StudID    int64     `json:"stud_id"`
	SubjectID int64     `json:"subject_id"`
	SectionID int64     `json:"section_id"`
	Internal  int       `json:"internal"`
	External  int       `json:"external"`
	Total     int       `json:"total"`
	Result    string    `json:"result"`
	Grade     string    `json:"grade"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
