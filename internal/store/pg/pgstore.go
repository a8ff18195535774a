package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"duerp.org/internal/catalogue"
	"duerp.org/internal/ids"
	"duerp.org/internal/prevention"
)

// Store is the durable prevention.Store backed by PostgreSQL.
type Store struct {
	db  *sql.DB
	cat catalogue.Catalogue
}

var _ prevention.Store = (*Store)(nil)

// Open connects to PostgreSQL via the pgx stdlib driver and tunes the pool.
func Open(dsn string, cat catalogue.Catalogue) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db, cat: cat}, nil
}

// NewWithDB wraps an existing connection, mainly for tests.
func NewWithDB(db *sql.DB, cat catalogue.Catalogue) *Store {
	return &Store{db: db, cat: cat}
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for migrations and health checks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) CreateWorkUnit(ctx context.Context, unit prevention.WorkUnit) (prevention.WorkUnit, error) {
	unit.Code = strings.TrimSpace(unit.Code)
	unit.Name = strings.TrimSpace(unit.Name)
	if unit.Code == "" || unit.Name == "" {
		return prevention.WorkUnit{}, prevention.ErrInvalidInput
	}
	if unit.Headcount != nil && *unit.Headcount < 0 {
		return prevention.WorkUnit{}, prevention.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return prevention.WorkUnit{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `select 1 from work_units where lower(code)=lower($1)`, unit.Code).Scan(&exists)
	if err == nil {
		return prevention.WorkUnit{}, prevention.ErrCodeTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return prevention.WorkUnit{}, err
	}

	unit.ID = ids.New()
	unit.CreatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		insert into work_units(id, code, name, headcount, job_titles, created_at)
		values ($1,$2,$3,$4,$5,$6)
	`, unit.ID, unit.Code, unit.Name, unit.Headcount, unit.JobTitles, unit.CreatedAt); err != nil {
		return prevention.WorkUnit{}, err
	}
	if err := tx.Commit(); err != nil {
		return prevention.WorkUnit{}, err
	}
	return unit, nil
}

func (s *Store) GetWorkUnit(ctx context.Context, id string) (prevention.WorkUnit, error) {
	return scanUnit(s.db.QueryRowContext(ctx, `
		select id, code, name, headcount, coalesce(job_titles,''), created_at
		from work_units where id=$1
	`, id))
}

func (s *Store) WorkUnitByCode(ctx context.Context, code string) (prevention.WorkUnit, error) {
	return scanUnit(s.db.QueryRowContext(ctx, `
		select id, code, name, headcount, coalesce(job_titles,''), created_at
		from work_units where lower(code)=lower($1)
	`, strings.TrimSpace(code)))
}

func scanUnit(row *sql.Row) (prevention.WorkUnit, error) {
	var unit prevention.WorkUnit
	err := row.Scan(&unit.ID, &unit.Code, &unit.Name, &unit.Headcount, &unit.JobTitles, &unit.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return prevention.WorkUnit{}, prevention.ErrNotFound
	}
	if err != nil {
		return prevention.WorkUnit{}, err
	}
	return unit, nil
}

func (s *Store) ListWorkUnits(ctx context.Context) ([]prevention.WorkUnit, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, code, name, headcount, coalesce(job_titles,''), created_at
		from work_units order by created_at asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []prevention.WorkUnit
	for rows.Next() {
		var unit prevention.WorkUnit
		if err := rows.Scan(&unit.ID, &unit.Code, &unit.Name, &unit.Headcount, &unit.JobTitles, &unit.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, unit)
	}
	return out, rows.Err()
}

func (s *Store) UnitDeletionImpact(ctx context.Context, id string) (prevention.DeletionImpact, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `select 1 from work_units where id=$1`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return prevention.DeletionImpact{}, prevention.ErrNotFound
	}
	if err != nil {
		return prevention.DeletionImpact{}, err
	}
	impact := prevention.DeletionImpact{UnitID: id}
	if err := s.db.QueryRowContext(ctx, `select count(*) from risks where unit_id=$1`, id).Scan(&impact.RiskCount); err != nil {
		return prevention.DeletionImpact{}, err
	}
	return impact, nil
}

func (s *Store) DeleteWorkUnit(ctx context.Context, id string, cascadeConfirmed bool) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `select 1 from work_units where id=$1 for update`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return prevention.ErrNotFound
	}
	if err != nil {
		return err
	}

	var dependents int
	if err := tx.QueryRowContext(ctx, `select count(*) from risks where unit_id=$1`, id).Scan(&dependents); err != nil {
		return err
	}
	if dependents > 0 {
		if !cascadeConfirmed {
			return prevention.ErrCascadeDenied
		}
		if _, err := tx.ExecContext(ctx, `delete from risks where unit_id=$1`, id); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `delete from work_units where id=$1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) CreateRisk(ctx context.Context, risk prevention.Risk) (prevention.Risk, error) {
	risk.Hazard = strings.TrimSpace(risk.Hazard)
	if risk.Hazard == "" {
		return prevention.Risk{}, prevention.ErrInvalidInput
	}
	if err := prevention.ValidateCotation(risk); err != nil {
		return prevention.Risk{}, err
	}
	if risk.UnitID != nil {
		if _, err := s.GetWorkUnit(ctx, *risk.UnitID); err != nil {
			return prevention.Risk{}, err
		}
	}

	risk.ID = ids.New()
	risk.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		insert into risks(id, category_code, hazard, situation, consequences, mitigation,
			unit_id, frequency, gravity, mastery, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, risk.ID, risk.CategoryCode, risk.Hazard, risk.Situation, risk.Consequences, risk.Mitigation,
		risk.UnitID, risk.Frequency, risk.Gravity, risk.Mastery, risk.CreatedAt)
	if err != nil {
		return prevention.Risk{}, err
	}
	return risk, nil
}

func (s *Store) GetRisk(ctx context.Context, id string) (prevention.Risk, error) {
	var risk prevention.Risk
	err := s.db.QueryRowContext(ctx, `
		select id, coalesce(category_code,''), hazard, coalesce(situation,''), coalesce(consequences,''),
			coalesce(mitigation,''), unit_id, frequency, gravity, mastery, created_at
		from risks where id=$1
	`, id).Scan(&risk.ID, &risk.CategoryCode, &risk.Hazard, &risk.Situation, &risk.Consequences,
		&risk.Mitigation, &risk.UnitID, &risk.Frequency, &risk.Gravity, &risk.Mastery, &risk.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return prevention.Risk{}, prevention.ErrNotFound
	}
	if err != nil {
		return prevention.Risk{}, err
	}
	return risk, nil
}

func (s *Store) ListRisks(ctx context.Context) ([]prevention.Risk, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, coalesce(category_code,''), hazard, coalesce(situation,''), coalesce(consequences,''),
			coalesce(mitigation,''), unit_id, frequency, gravity, mastery, created_at
		from risks order by created_at asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []prevention.Risk
	for rows.Next() {
		var risk prevention.Risk
		if err := rows.Scan(&risk.ID, &risk.CategoryCode, &risk.Hazard, &risk.Situation, &risk.Consequences,
			&risk.Mitigation, &risk.UnitID, &risk.Frequency, &risk.Gravity, &risk.Mastery, &risk.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, risk)
	}
	return out, rows.Err()
}

func (s *Store) CreateAction(ctx context.Context, action prevention.RemediationAction) (prevention.RemediationAction, error) {
	action.Description = strings.TrimSpace(action.Description)
	if action.Description == "" {
		return prevention.RemediationAction{}, prevention.ErrInvalidInput
	}
	if action.Status == "" {
		action.Status = prevention.ActionTodo
	}
	if action.RiskID != nil {
		if _, err := s.GetRisk(ctx, *action.RiskID); err != nil {
			return prevention.RemediationAction{}, err
		}
	}

	action.ID = ids.New()
	action.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		insert into remediation_actions(id, risk_id, description, type, priority, responsible,
			due_at, estimated_cost, completed_at, status, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, action.ID, action.RiskID, action.Description, action.Type, action.Priority, action.Responsible,
		action.DueAt, action.EstimatedCost, action.CompletedAt, action.Status, action.CreatedAt)
	if err != nil {
		return prevention.RemediationAction{}, err
	}
	return action, nil
}

func (s *Store) ListActions(ctx context.Context) ([]prevention.RemediationAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, risk_id, description, type, priority, coalesce(responsible,''),
			due_at, estimated_cost, completed_at, status, created_at
		from remediation_actions order by created_at asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []prevention.RemediationAction
	for rows.Next() {
		var action prevention.RemediationAction
		if err := rows.Scan(&action.ID, &action.RiskID, &action.Description, &action.Type, &action.Priority,
			&action.Responsible, &action.DueAt, &action.EstimatedCost, &action.CompletedAt, &action.Status,
			&action.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, action)
	}
	return out, rows.Err()
}

func (s *Store) CreateEquipmentItem(ctx context.Context, item prevention.EquipmentItem) (prevention.EquipmentItem, error) {
	if _, ok := s.cat.EquipmentType(item.TypeID); !ok {
		return prevention.EquipmentItem{}, prevention.ErrUnknownType
	}
	if item.BaseStatus == "" {
		item.BaseStatus = prevention.EquipmentCompliant
	}
	if item.UnitID != nil {
		if _, err := s.GetWorkUnit(ctx, *item.UnitID); err != nil {
			return prevention.EquipmentItem{}, err
		}
	}

	item.ID = ids.New()
	item.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		insert into equipment_items(id, type_id, unit_id, location, brand, model, serial, capacity,
			installed_at, expires_at, last_check_at, next_check_at, base_status, notes, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, item.ID, item.TypeID, item.UnitID, item.Location, item.Brand, item.Model, item.Serial, item.Capacity,
		item.InstalledAt, item.ExpiresAt, item.LastCheckAt, item.NextCheckAt, item.BaseStatus, item.Notes, item.CreatedAt)
	if err != nil {
		return prevention.EquipmentItem{}, err
	}
	return item, nil
}

func (s *Store) ListEquipmentItems(ctx context.Context) ([]prevention.EquipmentItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, type_id, unit_id, coalesce(location,''), coalesce(brand,''), coalesce(model,''),
			coalesce(serial,''), coalesce(capacity,''), installed_at, expires_at, last_check_at,
			next_check_at, base_status, coalesce(notes,''), created_at
		from equipment_items order by created_at asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []prevention.EquipmentItem
	for rows.Next() {
		var item prevention.EquipmentItem
		if err := rows.Scan(&item.ID, &item.TypeID, &item.UnitID, &item.Location, &item.Brand, &item.Model,
			&item.Serial, &item.Capacity, &item.InstalledAt, &item.ExpiresAt, &item.LastCheckAt,
			&item.NextCheckAt, &item.BaseStatus, &item.Notes, &item.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) CreateCertification(ctx context.Context, rec prevention.CertificationRecord) (prevention.CertificationRecord, error) {
	rec.PersonName = strings.TrimSpace(rec.PersonName)
	if rec.PersonName == "" {
		return prevention.CertificationRecord{}, prevention.ErrInvalidInput
	}
	def, ok := s.cat.CertificationType(rec.TypeID)
	if !ok {
		return prevention.CertificationRecord{}, prevention.ErrUnknownType
	}
	// Materialize the derived expiry so reports read a single column.
	if rec.ExpiresAt == nil {
		rec.ExpiresAt = rec.EffectiveExpiry(def)
	}

	rec.ID = ids.New()
	rec.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		insert into certifications(id, person_name, person_role, type_id, obtained_at, expires_at,
			issuer, certificate_ref, level_note, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, rec.ID, rec.PersonName, rec.PersonRole, rec.TypeID, rec.ObtainedAt, rec.ExpiresAt,
		rec.Issuer, rec.CertificateRef, rec.LevelNote, rec.CreatedAt)
	if err != nil {
		return prevention.CertificationRecord{}, err
	}
	return rec, nil
}

func (s *Store) ListCertifications(ctx context.Context) ([]prevention.CertificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, person_name, coalesce(person_role,''), type_id, obtained_at, expires_at,
			coalesce(issuer,''), coalesce(certificate_ref,''), coalesce(level_note,''), created_at
		from certifications order by created_at asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []prevention.CertificationRecord
	for rows.Next() {
		var rec prevention.CertificationRecord
		if err := rows.Scan(&rec.ID, &rec.PersonName, &rec.PersonRole, &rec.TypeID, &rec.ObtainedAt,
			&rec.ExpiresAt, &rec.Issuer, &rec.CertificateRef, &rec.LevelNote, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) CreateVerification(ctx context.Context, rec prevention.VerificationRecord) (prevention.VerificationRecord, error) {
	if _, ok := s.cat.VerificationType(rec.TypeID); !ok {
		return prevention.VerificationRecord{}, prevention.ErrUnknownType
	}
	if rec.PerformedAt.IsZero() {
		return prevention.VerificationRecord{}, prevention.ErrInvalidInput
	}

	rec.ID = ids.New()
	rec.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		insert into verifications(id, type_id, performed_at, performer, participants, passed,
			observations, next_planned_at, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, rec.ID, rec.TypeID, rec.PerformedAt, rec.Performer, rec.Participants, rec.Passed,
		rec.Observations, rec.NextPlannedAt, rec.CreatedAt)
	if err != nil {
		return prevention.VerificationRecord{}, err
	}
	return rec, nil
}

func (s *Store) ListVerifications(ctx context.Context) ([]prevention.VerificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, type_id, performed_at, coalesce(performer,''), participants, passed,
			coalesce(observations,''), next_planned_at, created_at
		from verifications order by created_at asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []prevention.VerificationRecord
	for rows.Next() {
		var rec prevention.VerificationRecord
		if err := rows.Scan(&rec.ID, &rec.TypeID, &rec.PerformedAt, &rec.Performer, &rec.Participants,
			&rec.Passed, &rec.Observations, &rec.NextPlannedAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
