package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"memberdir/internal/member/models"
	"memberdir/internal/member/query"
	"memberdir/internal/platform/postgres"
	"memberdir/pkg/platform/sentinel"
	"memberdir/pkg/platform/tx"
)

const memberColumns = `id, subject, role, membership, admission_status, admission_version,
	first_name, last_name, email, phone, title, preferred_language, country,
	education, associate, clinic, display, answers, created_at, updated_at`

// PostgresStore persists members in PostgreSQL. Sub-records are stored as
// JSONB; the columns used for filtering are stored natively.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, m *models.Member) error {
	row, err := toRow(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO members (`+memberColumns+`, services)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`, m.ID, m.Subject, m.Role, m.Account.Membership, m.Account.Admission, m.Account.Version,
		m.Personal.FirstName, m.Personal.LastName, m.Personal.Email, m.Personal.Phone,
		m.Professional.Title, m.Professional.PreferredLanguage, m.Professional.Country,
		row.education, row.associate, row.clinic, row.display, row.answers,
		m.CreatedAt, m.UpdatedAt, pq.Array(nonNil(m.Services())))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, memberID uuid.UUID) (*models.Member, error) {
	return s.findOne(ctx, s.db, `SELECT `+memberColumns+` FROM members WHERE id = $1`, memberID)
}

func (s *PostgresStore) FindBySubject(ctx context.Context, subject string) (*models.Member, error) {
	return s.findOne(ctx, s.db, `SELECT `+memberColumns+` FROM members WHERE subject = $1`, subject)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) findOne(ctx context.Context, q querier, stmt string, arg any) (*models.Member, error) {
	m, err := scanMember(q.QueryRowContext(ctx, stmt, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find member: %w", err)
	}
	return m, nil
}

// Search renders pred as a WHERE clause and returns one page plus the total count.
func (s *PostgresStore) Search(ctx context.Context, pred query.Predicate, page query.Page) (query.Result, error) {
	args := &query.Args{}
	where := pred.SQL(args)

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM members WHERE `+where, args.Values()...).Scan(&count); err != nil {
		return query.Result{}, fmt.Errorf("count members: %w", err)
	}

	limit := args.Add(page.Size)
	offset := args.Add(page.Offset())
	rows, err := s.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members WHERE `+where+
		` ORDER BY last_name, first_name, id LIMIT `+limit+` OFFSET `+offset, args.Values()...)
	if err != nil {
		return query.Result{}, fmt.Errorf("search members: %w", err)
	}
	defer rows.Close()

	result := query.Result{Count: count, Members: []*models.Member{}}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return query.Result{}, fmt.Errorf("scan member: %w", err)
		}
		result.Members = append(result.Members, m)
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate members: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) Emails(ctx context.Context, pred query.Predicate) ([]string, error) {
	args := &query.Args{}
	rows, err := s.db.QueryContext(ctx, `SELECT email FROM members WHERE (`+pred.SQL(args)+`) AND email <> '' ORDER BY email`, args.Values()...)
	if err != nil {
		return nil, fmt.Errorf("list member emails: %w", err)
	}
	defer rows.Close()
	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

// UpdateMembership locks the row, applies mutate and writes back the profile
// and classification columns. Admission columns are never written here.
func (s *PostgresStore) UpdateMembership(ctx context.Context, memberID uuid.UUID, mutate func(*models.Member) error) (*models.Member, error) {
	err := tx.Run(ctx, s.db, func(ctx context.Context, t *sql.Tx) error {
		m, err := s.findOne(ctx, t, `SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, memberID)
		if err != nil {
			return err
		}
		if err := mutate(m); err != nil {
			return err
		}
		row, err := toRow(m)
		if err != nil {
			return err
		}
		_, err = t.ExecContext(ctx, `
			UPDATE members SET
				membership = $2, first_name = $3, last_name = $4, email = $5, phone = $6,
				title = $7, preferred_language = $8, country = $9,
				education = $10, associate = $11, answers = $12, updated_at = $13
			WHERE id = $1
		`, m.ID, m.Account.Membership, m.Personal.FirstName, m.Personal.LastName, m.Personal.Email, m.Personal.Phone,
			m.Professional.Title, m.Professional.PreferredLanguage, m.Professional.Country,
			row.education, row.associate, row.answers, m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, memberID)
}

// TransitionAdmission is a conditional UPDATE keyed on the expected admission
// status and version. Zero rows affected means another writer won the race.
func (s *PostgresStore) TransitionAdmission(ctx context.Context, memberID uuid.UUID, expected models.AdmissionStatus, expectedVersion int64, mutate func(*models.Member) error) (*models.Member, error) {
	m, err := s.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if m.Account.Admission != expected || m.Account.Version != expectedVersion {
		return nil, sentinel.ErrStale
	}
	if err := mutate(m); err != nil {
		return nil, err
	}
	row, err := toRow(m)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE members SET
			admission_status = $4, admission_version = $5,
			clinic = $6, display = $7, services = $8, updated_at = $9
		WHERE id = $1 AND admission_status = $2 AND admission_version = $3
	`, memberID, expected, expectedVersion,
		m.Account.Admission, m.Account.Version, row.clinic, row.display, pq.Array(nonNil(m.Services())), m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("transition admission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("transition admission rows affected: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrStale
	}
	return m, nil
}

func (s *PostgresStore) SetRole(ctx context.Context, memberID uuid.UUID, role models.Role) error {
	res, err := s.db.ExecContext(ctx, `UPDATE members SET role = $2 WHERE id = $1`, memberID, role)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type jsonColumns struct {
	education, associate, clinic, display, answers []byte
}

func toRow(m *models.Member) (jsonColumns, error) {
	var row jsonColumns
	var err error
	if row.education, err = marshalNullable(m.Education); err != nil {
		return row, fmt.Errorf("marshal education: %w", err)
	}
	if row.associate, err = marshalNullable(m.Associate); err != nil {
		return row, fmt.Errorf("marshal associate: %w", err)
	}
	if row.clinic, err = marshalNullable(m.Clinic); err != nil {
		return row, fmt.Errorf("marshal clinic: %w", err)
	}
	if row.display, err = marshalNullable(m.Display); err != nil {
		return row, fmt.Errorf("marshal display: %w", err)
	}
	if row.answers, err = json.Marshal(m.Answers); err != nil {
		return row, fmt.Errorf("marshal answers: %w", err)
	}
	return row, nil
}

// marshalNullable maps a nil pointer to SQL NULL.
func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (*models.Member, error) {
	var (
		m                                              models.Member
		role, membership, admission, language          string
		education, associate, clinic, display, answers []byte
	)
	err := row.Scan(&m.ID, &m.Subject, &role, &membership, &admission, &m.Account.Version,
		&m.Personal.FirstName, &m.Personal.LastName, &m.Personal.Email, &m.Personal.Phone,
		&m.Professional.Title, &language, &m.Professional.Country,
		&education, &associate, &clinic, &display, &answers, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	m.Account.Membership = models.Category(membership)
	m.Account.Admission = models.AdmissionStatus(admission)
	m.Professional.PreferredLanguage = models.Language(language)

	if err := unmarshalNullable(education, &m.Education); err != nil {
		return nil, fmt.Errorf("unmarshal education: %w", err)
	}
	if err := unmarshalNullable(associate, &m.Associate); err != nil {
		return nil, fmt.Errorf("unmarshal associate: %w", err)
	}
	if err := unmarshalNullable(clinic, &m.Clinic); err != nil {
		return nil, fmt.Errorf("unmarshal clinic: %w", err)
	}
	if err := unmarshalNullable(display, &m.Display); err != nil {
		return nil, fmt.Errorf("unmarshal display: %w", err)
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &m.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return &m, nil
}

func unmarshalNullable[T any](data []byte, dst **T) error {
	if len(data) == 0 {
		*dst = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
