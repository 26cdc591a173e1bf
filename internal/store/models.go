package store

type Class struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Code        string   `json:"code"`
	Instruments []string `json:"instruments"` // assignment order
}

type Student struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	StudentNo string `json:"student_no"`
	Group     string `json:"group,omitempty"`
	Program   string `json:"program"`
	ClassID   int64  `json:"class_id"`
}

type Result struct {
	ID         int64  `json:"id"`
	StudentID  int64  `json:"student_id"`
	Instrument string `json:"instrument"`
	Outcome    string `json:"outcome"`
	CreatedAt  int64  `json:"created_at"`
}

// ResultEntry is one instrument/outcome pair to persist. The screening
// battery submits four of these in a single transaction.
type ResultEntry struct {
	Instrument string
	Outcome    string
}

// ResultRow is a result joined with its student and class, as the
// analytics views consume it.
type ResultRow struct {
	ClassID     int64
	ClassName   string
	StudentID   int64
	StudentName string
	Instrument  string
	Outcome     string
}

type Session struct {
	StudentID int64
	Token     string
	UserAgent string
	CreatedAt int64
}

type LoginAttempt struct {
	IP          string
	Attempts    int
	LockedUntil int64 // unix seconds, 0 when not locked
}

// RosterFilter narrows the class roster listing. Empty fields match all.
type RosterFilter struct {
	Student    string
	Program    string
	Instrument string
	Outcome    string
}

// RosterRow is one student/result pair of a class roster. Instrument and
// Outcome are empty for students without results.
type RosterRow struct {
	StudentID  int64  `json:"student_id"`
	Name       string `json:"name"`
	Program    string `json:"program"`
	Instrument string `json:"instrument,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
}
