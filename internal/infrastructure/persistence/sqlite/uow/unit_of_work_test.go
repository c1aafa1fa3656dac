package uow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"radreject/internal/infrastructure/persistence/sqlite/model"
	"radreject/internal/infrastructure/persistence/sqlite/repository"
	"radreject/internal/ports"
)

func setup(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "uow.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := setup(t)
	uow := NewUnitOfWork(db)
	exams := repository.NewExaminationRepository(db)
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := exams.CreateExamination(txCtx, ports.Examination{AccessionNo: "ACC-1", Modality: "CR", CreatedAt: time.Now()}); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("WithTx() error = %v", err)
	}

	var count int64
	if err := db.Model(&model.Examination{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("rows after rollback = %d", count)
	}
}

func TestWithTxJoinsEnclosingTransaction(t *testing.T) {
	db := setup(t)
	uow := NewUnitOfWork(db)
	ctx := context.Background()

	err := uow.WithTx(ctx, func(outer context.Context) error {
		outerTx := ports.TxFromContext(outer)
		return uow.WithTx(outer, func(inner context.Context) error {
			if ports.TxFromContext(inner) != outerTx {
				t.Fatalf("nested WithTx opened a new transaction")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
}
