package models

import "time"

// Extraction is one scraping run over one section and one semester.
// Counters only ever move upward; progress is recomputed on every flush.
type Extraction struct {
	ExtractionID int64     `json:"extraction_id"`
	SectionID    int64     `json:"section_id"`
	SemID        int64     `json:"sem_id"`
	TotalUSNs    int       `json:"total_usns"`
	NumCompleted int       `json:"num_completed"`
	NumInvalid   int       `json:"num_invalid"`
	NumCaptcha   int       `json:"num_captcha"`
	NumTimeout   int       `json:"num_timeout"`
	Reattempts   int       `json:"reattempts"`
	Progress     float64   `json:"progress"`
	Completed    bool      `json:"completed"`
	Failed       bool      `json:"failed"`
	TimeTaken    float64   `json:"time_taken"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ExtractionInvalid lists the USNs of a run that ended in a terminal
// per-USN failure, one comma-delimited field per failure class.
type ExtractionInvalid struct {
	InvalidID    int64     `json:"invalid_id"`
	ExtractionID int64     `json:"extraction_id"`
	InvalidUSNs  string    `json:"invalid_usns"`
	CaptchaUSNs  string    `json:"captcha_usns"`
	TimeoutUSNs  string    `json:"timeout_usns"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProgressDelta is one batch of counter increments flushed to an
// extraction row.
type ProgressDelta struct {
	Count      int
	Invalids   int
	Captchas   int
	Timeouts   int
	Reattempts int
	Elapsed    float64 // seconds
}
