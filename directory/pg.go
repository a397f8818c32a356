package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campustrack/authcore"
)

const pgUniqueViolation = "23505"

// PG implements [authcore.AccountDirectory] and
// [authcore.ProfileResolver] on Postgres. Sparse uniqueness of email and
// phone is enforced by partial unique indexes on the accounts table.
type PG struct {
	db *pgxpool.Pool
}

// NewPG wraps an existing connection pool. The pool stays owned by the
// caller and is not closed by the directory.
func NewPG(db *pgxpool.Pool) *PG {
	return &PG{db: db}
}

func scanPrincipal(row pgx.Row) (authcore.Principal, error) {
	var p authcore.Principal
	var email, phone *string
	if err := row.Scan(&p.ID, &email, &phone); err != nil {
		return authcore.Principal{}, err
	}
	if email != nil {
		p.Email = *email
	}
	if phone != nil {
		p.Phone = *phone
	}
	return p, nil
}

// FindByContact implements [authcore.AccountDirectory].
func (r *PG) FindByContact(ctx context.Context, contact string) (authcore.Principal, error) {
	q := `SELECT id, email, phone FROM accounts WHERE email = $1 OR phone = $1`
	p, err := scanPrincipal(r.db.QueryRow(ctx, q, contact))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authcore.Principal{}, authcore.ErrAccountNotFound
		}
		return authcore.Principal{}, err
	}
	return p, nil
}

// FindByID implements [authcore.AccountDirectory].
func (r *PG) FindByID(ctx context.Context, id string) (authcore.Principal, error) {
	q := `SELECT id, email, phone FROM accounts WHERE id = $1`
	p, err := scanPrincipal(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authcore.Principal{}, authcore.ErrAccountNotFound
		}
		return authcore.Principal{}, err
	}
	return p, nil
}

// Create implements [authcore.AccountDirectory]. A unique-index violation
// from a concurrent insert maps to [authcore.ErrDuplicateContact].
func (r *PG) Create(ctx context.Context, contact string) (authcore.Principal, error) {
	email, phone := authcore.SplitContact(contact)

	q := `
INSERT INTO accounts (id, email, phone)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
RETURNING id, email, phone`
	p, err := scanPrincipal(r.db.QueryRow(ctx, q, uuid.NewString(), email, phone))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return authcore.Principal{}, authcore.ErrDuplicateContact
		}
		return authcore.Principal{}, err
	}
	return p, nil
}

// ResolveByContact implements [authcore.ProfileResolver]. Teachers are
// checked before students, matching the profile store's resolution order.
func (r *PG) ResolveByContact(ctx context.Context, email, phone string) (authcore.ResolvedProfile, error) {
	if email == "" && phone == "" {
		return authcore.ResolvedProfile{}, authcore.ErrProfileNotFound
	}

	var p authcore.Profile

	q := `
SELECT id, firstname, lastname, COALESCE(email, ''), COALESCE(phone, ''), teacher_id, subjects
FROM teachers
WHERE ($1 <> '' AND email = $1) OR ($2 <> '' AND phone = $2)`
	err := r.db.QueryRow(ctx, q, email, phone).Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.TeacherID, &p.Subjects,
	)
	if err == nil {
		return authcore.ResolvedProfile{Kind: authcore.KindTeacher, Profile: p}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return authcore.ResolvedProfile{}, err
	}

	p = authcore.Profile{}
	q = `
SELECT id, firstname, lastname, COALESCE(email, ''), COALESCE(phone, ''),
       branch, semester, section, enrollment_no, university_roll_no
FROM students
WHERE ($1 <> '' AND email = $1) OR ($2 <> '' AND phone = $2)`
	err = r.db.QueryRow(ctx, q, email, phone).Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone,
		&p.Branch, &p.Semester, &p.Section, &p.EnrollmentNo, &p.UniversityRollNo,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authcore.ResolvedProfile{}, authcore.ErrProfileNotFound
		}
		return authcore.ResolvedProfile{}, err
	}

	return authcore.ResolvedProfile{Kind: authcore.KindStudent, Profile: p}, nil
}
