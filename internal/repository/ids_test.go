package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hitoshi/lunchman/internal/model"
)

const (
	testUserID     = "0d8f5a52-6c1e-4b7a-9f3e-2a1b7c9d4e01"
	testOrgID      = "5b1e9c3a-2f47-4d8e-a6b0-7c3d9e1f2a02"
	testCategoryID = "9a4c7e21-8d3b-4f6a-b1c5-e2d7f0a3b603"
	testMissingID  = "f3e2d1c0-b9a8-4765-8432-10fedcba9804"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"正規表記", testUserID, testUserID, true},
		{"大文字", "0D8F5A52-6C1E-4B7A-9F3E-2A1B7C9D4E01", testUserID, true},
		{"波括弧付き", "{" + testUserID + "}", testUserID, true},
		{"ハイフンなし", "0d8f5a526c1e4b7a9f3e2a1b7c9d4e01", testUserID, true},
		{"不正な文字列", "abc", "abc", false},
		{"空文字列", "", "", false},
		{"SQL断片", "1' OR '1'='1", "1' OR '1'='1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalizeID(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("normalizeID(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// 不正な形式のIDはDBに問い合わせず「存在しない」として扱う
func TestFindByID_MalformedID_ReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	finders := map[string]func(id string) (bool, error){
		"user": func(id string) (bool, error) {
			u, err := NewPostgresUserRepo(db).FindByID(ctx, id)
			return u != nil, err
		},
		"organization": func(id string) (bool, error) {
			o, err := NewPostgresOrganizationRepo(db).FindByID(ctx, id)
			return o != nil, err
		},
		"category": func(id string) (bool, error) {
			c, err := NewPostgresCategoryRepo(db).FindByID(ctx, id)
			return c != nil, err
		},
		"item": func(id string) (bool, error) {
			it, err := NewPostgresItemRepo(db).FindByID(ctx, id)
			return it != nil, err
		},
		"day_menu": func(id string) (bool, error) {
			m, err := NewPostgresDayMenuRepo(db).FindByID(ctx, id)
			return m != nil, err
		},
		"order": func(id string) (bool, error) {
			o, err := NewPostgresOrderRepo(db).FindByID(ctx, id)
			return o != nil, err
		},
	}

	for name, find := range finders {
		t.Run(name, func(t *testing.T) {
			found, err := find("abc")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if found {
				t.Error("malformed id should not match any record")
			}
		})
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no query should be issued: %v", err)
	}
}

func TestDeleteByID_MalformedID_ReturnsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	deleters := map[string]func(id string) error{
		"user":         func(id string) error { return NewPostgresUserRepo(db).DeleteByID(ctx, id) },
		"organization": func(id string) error { return NewPostgresOrganizationRepo(db).DeleteByID(ctx, id) },
		"category":     func(id string) error { return NewPostgresCategoryRepo(db).DeleteByID(ctx, id) },
		"item":         func(id string) error { return NewPostgresItemRepo(db).DeleteByID(ctx, id) },
		"day_menu":     func(id string) error { return NewPostgresDayMenuRepo(db).DeleteByID(ctx, id) },
		"order":        func(id string) error { return NewPostgresOrderRepo(db).DeleteByID(ctx, id) },
	}

	for name, del := range deleters {
		t.Run(name, func(t *testing.T) {
			err := del("abc")
			if !model.IsAPIErrorCode(err, model.ErrCodeNotFound) {
				t.Errorf("expected NOT_FOUND, got %v", err)
			}
		})
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no statement should be issued: %v", err)
	}
}

// 正規表記以外のUUIDは正規化してから問い合わせる
func TestFindByID_NormalizesID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM orders WHERE id = \$1`).
		WithArgs(testMissingID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at", "updated_at"}))

	order, err := NewPostgresOrderRepo(db).FindByID(context.Background(), "{F3E2D1C0-B9A8-4765-8432-10FEDCBA9804}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order != nil {
		t.Errorf("expected nil, got %+v", order)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresOrderRepo_List_MalformedFilter_ReturnsEmpty(t *testing.T) {
	from := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		q    OrderQuery
	}{
		{"組織", OrderQuery{From: from, Before: from.AddDate(0, 0, 1), OrganizationID: "abc"}},
		{"ユーザー", OrderQuery{From: from, Before: from.AddDate(0, 0, 1), UserID: "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			orders, err := NewPostgresOrderRepo(db).List(context.Background(), tt.q)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if orders == nil || len(orders) != 0 {
				t.Errorf("expected empty slice, got %+v", orders)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("no query should be issued: %v", err)
			}
		})
	}
}
