package migrations

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestApplyExecutesAllMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS businesses").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS loyalty_transactions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE OR REPLACE FUNCTION apply_loyalty_transaction").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := Apply(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpFilesSorted(t *testing.T) {
	names, err := upFiles()
	if err != nil {
		t.Fatalf("up files: %v", err)
	}
	if len(names) != 3 || names[0] != "0001_core.up.sql" || names[2] != "0003_loyalty_rpc.up.sql" {
		t.Fatalf("unexpected files %v", names)
	}
}

func TestDownRejectsNonPositiveSteps(t *testing.T) {
	if err := Down(nil, 0); err == nil {
		t.Fatalf("expected error")
	}
}
