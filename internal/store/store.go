package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	// modernc sqlite and pgx report unique violations as text only
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint failed")
}

/* ---------------- classes ---------------- */

func (s *SQLStore) CreateClass(ctx context.Context, name, code string, instruments []string) (Class, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Class{}, err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO classes (name, code) VALUES ($1,$2) RETURNING id`,
		name, code).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return Class{}, fmt.Errorf("class code %q: %w", code, ErrDuplicate)
		}
		return Class{}, err
	}
	for i, instrument := range instruments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO class_instruments (class_id, instrument, position) VALUES ($1,$2,$3)`,
			id, instrument, i); err != nil {
			return Class{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Class{}, err
	}
	return Class{ID: id, Name: name, Code: code, Instruments: instruments}, nil
}

func (s *SQLStore) GetClass(ctx context.Context, id int64) (Class, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, code FROM classes WHERE id=$1`, id)
	return s.scanClass(ctx, row)
}

func (s *SQLStore) GetClassByCode(ctx context.Context, code string) (Class, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, code FROM classes WHERE code=$1`, code)
	return s.scanClass(ctx, row)
}

func (s *SQLStore) scanClass(ctx context.Context, row *sql.Row) (Class, error) {
	var c Class
	if err := row.Scan(&c.ID, &c.Name, &c.Code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Class{}, fmt.Errorf("class: %w", ErrNotFound)
		}
		return Class{}, err
	}
	var err error
	c.Instruments, err = s.ListClassInstruments(ctx, c.ID)
	if err != nil {
		return Class{}, err
	}
	return c, nil
}

func (s *SQLStore) ListClasses(ctx context.Context) ([]Class, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, code FROM classes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Class
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.ID, &c.Name, &c.Code); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Instruments, err = s.ListClassInstruments(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLStore) ListClassInstruments(ctx context.Context, classID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT instrument FROM class_instruments WHERE class_id=$1 ORDER BY position`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var instrument string
		if err := rows.Scan(&instrument); err != nil {
			return nil, err
		}
		out = append(out, instrument)
	}
	return out, rows.Err()
}

// DeleteClass removes a class and everything hanging off it. Results and
// sessions of its students must never outlive the class.
func (s *SQLStore) DeleteClass(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM results WHERE student_id IN (SELECT id FROM students WHERE class_id=$1)`,
		`DELETE FROM sessions WHERE student_id IN (SELECT id FROM students WHERE class_id=$1)`,
		`DELETE FROM students WHERE class_id=$1`,
		`DELETE FROM class_instruments WHERE class_id=$1`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("class: %w", ErrNotFound)
	}
	return tx.Commit()
}

/* ---------------- students ---------------- */

func (s *SQLStore) CreateStudent(ctx context.Context, st Student) (Student, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO students (name, student_no, grp, program, class_id)
		 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		st.Name, st.StudentNo, st.Group, st.Program, st.ClassID).Scan(&st.ID)
	if err != nil {
		return Student{}, err
	}
	return st, nil
}

func (s *SQLStore) GetStudent(ctx context.Context, id int64) (Student, error) {
	var st Student
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, student_no, grp, program, class_id FROM students WHERE id=$1`, id).
		Scan(&st.ID, &st.Name, &st.StudentNo, &st.Group, &st.Program, &st.ClassID)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, fmt.Errorf("student: %w", ErrNotFound)
	}
	if err != nil {
		return Student{}, err
	}
	return st, nil
}

func (s *SQLStore) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, student_no, grp, program, class_id FROM students ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.Name, &st.StudentNo, &st.Group, &st.Program, &st.ClassID); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

/* ---------------- results ---------------- */

func (s *SQLStore) AddResult(ctx context.Context, studentID int64, instrument, outcome string) (Result, error) {
	now := time.Now().Unix()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO results (student_id, instrument, outcome, created_at)
		 VALUES ($1,$2,$3,$4) RETURNING id`,
		studentID, instrument, outcome, now).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return Result{}, fmt.Errorf("result for %q: %w", instrument, ErrDuplicate)
		}
		return Result{}, err
	}
	return Result{ID: id, StudentID: studentID, Instrument: instrument, Outcome: outcome, CreatedAt: now}, nil
}

// AddResults persists several entries atomically; either the whole battery
// lands or none of it does.
func (s *SQLStore) AddResults(ctx context.Context, studentID int64, entries []ResultEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO results (student_id, instrument, outcome, created_at) VALUES ($1,$2,$3,$4)`,
			studentID, e.Instrument, e.Outcome, now); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("result for %q: %w", e.Instrument, ErrDuplicate)
			}
			return err
		}
	}
	return tx.Commit()
}

// ListResultTags returns the instrument tags already recorded for a student.
func (s *SQLStore) ListResultTags(ctx context.Context, studentID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT instrument FROM results WHERE student_id=$1`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

func (s *SQLStore) LatestResult(ctx context.Context, studentID int64, instrument string) (Result, error) {
	var r Result
	err := s.db.QueryRowContext(ctx,
		`SELECT id, student_id, instrument, outcome, created_at
		 FROM results WHERE student_id=$1 AND instrument=$2
		 ORDER BY id DESC LIMIT 1`,
		studentID, instrument).
		Scan(&r.ID, &r.StudentID, &r.Instrument, &r.Outcome, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, fmt.Errorf("result: %w", ErrNotFound)
	}
	if err != nil {
		return Result{}, err
	}
	return r, nil
}

func (s *SQLStore) ListResultRows(ctx context.Context) ([]ResultRow, error) {
	return s.queryResultRows(ctx,
		`SELECT c.id, c.name, e.id, e.name, r.instrument, r.outcome
		 FROM results r
		 JOIN students e ON e.id = r.student_id
		 JOIN classes c ON c.id = e.class_id
		 ORDER BY c.id, e.id, r.id`)
}

func (s *SQLStore) ListResultRowsByClass(ctx context.Context, classID int64) ([]ResultRow, error) {
	return s.queryResultRows(ctx,
		`SELECT c.id, c.name, e.id, e.name, r.instrument, r.outcome
		 FROM results r
		 JOIN students e ON e.id = r.student_id
		 JOIN classes c ON c.id = e.class_id
		 WHERE c.id=$1
		 ORDER BY e.id, r.id`, classID)
}

func (s *SQLStore) queryResultRows(ctx context.Context, q string, args ...any) ([]ResultRow, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultRow
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(&r.ClassID, &r.ClassName, &r.StudentID, &r.StudentName, &r.Instrument, &r.Outcome); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) Roster(ctx context.Context, classID int64, f RosterFilter) ([]RosterRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.name, e.program, COALESCE(r.instrument,''), COALESCE(r.outcome,'')
		 FROM students e
		 LEFT JOIN results r ON r.student_id = e.id
		 WHERE e.class_id=$1
		   AND e.name LIKE $2
		   AND e.program LIKE $3
		   AND COALESCE(r.instrument,'') LIKE $4
		   AND COALESCE(r.outcome,'') LIKE $5
		 ORDER BY e.name, r.id`,
		classID, like(f.Student), like(f.Program), like(f.Instrument), like(f.Outcome))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RosterRow
	for rows.Next() {
		var r RosterRow
		if err := rows.Scan(&r.StudentID, &r.Name, &r.Program, &r.Instrument, &r.Outcome); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func like(s string) string { return "%" + s + "%" }

/* ---------------- sessions ---------------- */

// UpsertSession stores the single live session for a student, replacing any
// previous token. Overwrite is the only invalidation mechanism.
func (s *SQLStore) UpsertSession(ctx context.Context, studentID int64, token, userAgent string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (student_id, token, user_agent, created_at)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (student_id) DO UPDATE SET token=EXCLUDED.token,
		   user_agent=EXCLUDED.user_agent, created_at=EXCLUDED.created_at`,
		studentID, token, userAgent, time.Now().Unix())
	return err
}

func (s *SQLStore) GetSessionToken(ctx context.Context, studentID int64) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM sessions WHERE student_id=$1`, studentID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("session: %w", ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

/* ---------------- login attempts ---------------- */

func (s *SQLStore) GetLoginAttempt(ctx context.Context, ip string) (LoginAttempt, error) {
	var a LoginAttempt
	err := s.db.QueryRowContext(ctx,
		`SELECT ip, attempts, locked_until FROM login_attempts WHERE ip=$1`, ip).
		Scan(&a.IP, &a.Attempts, &a.LockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return LoginAttempt{}, fmt.Errorf("login attempt: %w", ErrNotFound)
	}
	if err != nil {
		return LoginAttempt{}, err
	}
	return a, nil
}

// RecordLoginFailure increments the failure counter for ip inside one
// transaction so concurrent failures cannot lose updates. Once the counter
// reaches lockAfter the lockout expiry is set to lockedUntil; the counter
// itself stays elevated until ClearLoginAttempts.
func (s *SQLStore) RecordLoginFailure(ctx context.Context, ip string, lockAfter int, lockedUntil int64) (LoginAttempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return LoginAttempt{}, err
	}
	defer tx.Rollback()

	a := LoginAttempt{IP: ip}
	err = tx.QueryRowContext(ctx,
		`SELECT attempts, locked_until FROM login_attempts WHERE ip=$1`, ip).
		Scan(&a.Attempts, &a.LockedUntil)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		a.Attempts = 1
		if a.Attempts >= lockAfter {
			a.LockedUntil = lockedUntil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO login_attempts (ip, attempts, locked_until) VALUES ($1,$2,$3)`,
			ip, a.Attempts, a.LockedUntil); err != nil {
			return LoginAttempt{}, err
		}
	case err != nil:
		return LoginAttempt{}, err
	default:
		a.Attempts++
		if a.Attempts >= lockAfter {
			a.LockedUntil = lockedUntil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE login_attempts SET attempts=$1, locked_until=$2 WHERE ip=$3`,
			a.Attempts, a.LockedUntil, ip); err != nil {
			return LoginAttempt{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return LoginAttempt{}, err
	}
	return a, nil
}

func (s *SQLStore) ClearLoginAttempts(ctx context.Context, ip string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE ip=$1`, ip)
	return err
}
