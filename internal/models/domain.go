package models

import "time"

// Department is an organizational unit owning batches.
type Department struct {
	DeptID    int64     `json:"dept_id"`
	DeptName  string    `json:"dept_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Batch is a cohort of students admitted together. StartUSN and
// EndUSN bound the cohort's USN range; the lateral range is optional
// and covers lateral-entry admissions.
type Batch struct {
	BatchID         int64     `json:"batch_id"`
	DeptID          int64     `json:"dept_id"`
	BatchStartYear  int       `json:"batch_start_year"`
	BatchEndYear    int       `json:"batch_end_year"`
	Scheme          string    `json:"scheme"`
	StartUSN        string    `json:"start_usn"`
	EndUSN          string    `json:"end_usn"`
	LateralStartUSN *string   `json:"lateral_start_usn,omitempty"`
	LateralEndUSN   *string   `json:"lateral_end_usn,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Section is a sub-range of a batch with its own USN bounds.
type Section struct {
	SectionID   int64     `json:"section_id"`
	BatchID     int64     `json:"batch_id"`
	SectionName string    `json:"section_name"`
	NumStudents int       `json:"num_students"`
	StartUSN    string    `json:"start_usn"`
	EndUSN      string    `json:"end_usn"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Semester is a temporal phase of a batch. At most one semester per
// batch carries Current=true.
type Semester struct {
	SemID     int64     `json:"sem_id"`
	BatchID   int64     `json:"batch_id"`
	SemNum    int       `json:"sem_num"`
	Current   bool      `json:"current"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subject belongs to a semester and is identified by (sub_code, sem_id).
type Subject struct {
	SubjectID int64     `json:"subject_id"`
	SemID     int64     `json:"sem_id"`
	SubCode   string    `json:"sub_code"`
	SubName   string    `json:"sub_name"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Student belongs to a batch and a section. Active=false marks a
// student as no longer enrolled; a later successful scrape revives it.
type Student struct {
	StudID     int64     `json:"stud_id"`
	BatchID    int64     `json:"batch_id"`
	SectionID  int64     `json:"section_id"`
	USN        string    `json:"usn"`
	StudName   string    `json:"stud_name"`
	CGPA       float64   `json:"cgpa"`
	CurrentSem int       `json:"current_sem"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
