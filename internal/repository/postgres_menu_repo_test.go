package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/hitoshi/lunchman/internal/model"
)

var itemColumns = []string{
	"id", "category_id", "name", "name", "description", "price", "created_at", "updated_at",
}

func TestPostgresDayMenuRepo_FindLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	before := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	created := before.Add(-48 * time.Hour)

	mock.ExpectQuery(`FROM day_menus\s+WHERE day_id = \$1 AND created_at < \$2\s+ORDER BY created_at DESC`).
		WithArgs(int(time.Wednesday), before).
		WillReturnRows(sqlmock.NewRows([]string{"id", "day_id", "created_at"}).
			AddRow("m1", 3, created))
	mock.ExpectQuery(`JOIN day_menu_items dmi`).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("i1", "c1", "スープ", "味噌汁", "", 100, created, created))

	menu, err := NewPostgresDayMenuRepo(db).FindLatest(context.Background(), time.Wednesday, before)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if menu == nil {
		t.Fatal("expected menu, got nil")
	}
	if menu.Weekday != time.Wednesday {
		t.Errorf("Weekday = %v, want Wednesday", menu.Weekday)
	}
	if len(menu.Items) != 1 || menu.Items[0].CategoryName != "スープ" {
		t.Errorf("Items = %+v", menu.Items)
	}
}

func TestPostgresDayMenuRepo_FindLatest_None(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM day_menus`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "day_id", "created_at"}))

	menu, err := NewPostgresDayMenuRepo(db).FindLatest(context.Background(), time.Monday, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if menu != nil {
		t.Errorf("expected nil, got %+v", menu)
	}
}

func TestPostgresDayMenuRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	menu := &model.DayMenu{
		ID: "m1", Weekday: time.Friday, CreatedAt: now,
		Items: []model.Item{{ID: "i1"}, {ID: "i2"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO day_menus`).
		WithArgs("m1", int(time.Friday), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO day_menu_items`).WithArgs("m1", "i1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO day_menu_items`).WithArgs("m1", "i2").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := NewPostgresDayMenuRepo(db).Create(context.Background(), menu); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresItemRepo_FindByIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()
	repo := NewPostgresItemRepo(db)

	items, err := repo.FindByIDs(context.Background(), nil)
	if err != nil || items == nil || len(items) != 0 {
		t.Fatalf("FindByIDs(nil) = %v, %v", items, err)
	}

	now := time.Now()
	mock.ExpectQuery(`WHERE i.id::text = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("i1", "c1", "メイン", "唐揚げ", "", 500, now, now))

	items, err = repo.FindByIDs(context.Background(), []string{"i1", "missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "i1" {
		t.Errorf("items = %+v", items)
	}
}

func TestPostgresItemRepo_FindByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`WHERE i.id = \$1`).
		WithArgs(testMissingID).
		WillReturnRows(sqlmock.NewRows(itemColumns))

	item, err := NewPostgresItemRepo(db).FindByID(context.Background(), testMissingID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item != nil {
		t.Errorf("expected nil, got %+v", item)
	}
}

func TestPostgresCategoryRepo_DeleteByID_InUse(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM categories`).
		WithArgs(testCategoryID).
		WillReturnError(&pq.Error{Code: pgerrcode.ForeignKeyViolation, Table: "items", Constraint: "items_category_id_fkey"})

	err = NewPostgresCategoryRepo(db).DeleteByID(context.Background(), testCategoryID)
	if !model.IsAPIErrorCode(err, model.ErrCodeConflict) {
		t.Errorf("expected CONFLICT, got %v", err)
	}
}
