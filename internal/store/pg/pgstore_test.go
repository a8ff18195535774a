package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"duerp.org/internal/catalogue"
	"duerp.org/internal/prevention"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db, catalogue.Default()), mock
}

func TestCreateWorkUnitInsertsRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select 1 from work_units where lower\(code\)=lower`).
		WithArgs("AT1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`insert into work_units`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	unit, err := store.CreateWorkUnit(context.Background(), prevention.WorkUnit{Code: "AT1", Name: "Atelier"})
	if err != nil {
		t.Fatalf("CreateWorkUnit: %v", err)
	}
	if unit.ID == "" {
		t.Fatal("expected generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateWorkUnitDuplicateCode(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select 1 from work_units where lower\(code\)=lower`).
		WithArgs("AT1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	_, err := store.CreateWorkUnit(context.Background(), prevention.WorkUnit{Code: "AT1", Name: "Atelier"})
	if !errors.Is(err, prevention.ErrCodeTaken) {
		t.Fatalf("expected ErrCodeTaken, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteWorkUnitCascadeDenied(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select 1 from work_units where id=\$1 for update`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`select count\(\*\) from risks where unit_id=\$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := store.DeleteWorkUnit(context.Background(), "u1", false)
	if !errors.Is(err, prevention.ErrCascadeDenied) {
		t.Fatalf("expected ErrCascadeDenied, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteWorkUnitCascadeConfirmed(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select 1 from work_units where id=\$1 for update`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`select count\(\*\) from risks where unit_id=\$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(`delete from risks where unit_id=\$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`delete from work_units where id=\$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.DeleteWorkUnit(context.Background(), "u1", true); err != nil {
		t.Fatalf("DeleteWorkUnit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateEquipmentItemUnknownTypeSkipsDB(t *testing.T) {
	store, mock := newMockStore(t)

	_, err := store.CreateEquipmentItem(context.Background(), prevention.EquipmentItem{TypeID: "lance_incendie"})
	if !errors.Is(err, prevention.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateCertificationMaterializesExpiry(t *testing.T) {
	store, mock := newMockStore(t)

	obtained := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	wantExpiry := obtained.AddDate(0, 24, 0)

	mock.ExpectExec(`insert into certifications`).
		WithArgs(sqlmock.AnyArg(), "Claire Petit", "", catalogue.CertFirstAid, &obtained, &wantExpiry,
			"", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := store.CreateCertification(context.Background(), prevention.CertificationRecord{
		PersonName: "Claire Petit",
		TypeID:     catalogue.CertFirstAid,
		ObtainedAt: &obtained,
	})
	if err != nil {
		t.Fatalf("CreateCertification: %v", err)
	}
	if rec.ExpiresAt == nil || !rec.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expiry not materialized: %v", rec.ExpiresAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateRiskRejectsBadCotation(t *testing.T) {
	store, mock := newMockStore(t)

	five := 5
	_, err := store.CreateRisk(context.Background(), prevention.Risk{Hazard: "Chute", Frequency: &five})
	if !errors.Is(err, prevention.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListWorkUnitsScansRows(t *testing.T) {
	store, mock := newMockStore(t)

	created := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`select id, code, name, headcount, coalesce\(job_titles,''\), created_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "headcount", "job_titles", "created_at"}).
			AddRow("u1", "AT1", "Atelier", 12, "soudeur", created).
			AddRow("u2", "BUR", "Bureaux", nil, "", created))

	units, err := store.ListWorkUnits(context.Background())
	if err != nil {
		t.Fatalf("ListWorkUnits: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].Headcount == nil || *units[0].Headcount != 12 {
		t.Fatalf("headcount not scanned: %+v", units[0])
	}
	if units[1].Headcount != nil {
		t.Fatal("nil headcount should stay nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
