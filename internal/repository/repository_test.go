package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coursecart/fulfillment/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "name", "email", "role", "courses", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewWithDB(mock), mock
}

func TestRepository_GetUserByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM users WHERE id").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("u1", "Asha", "asha@example.com", model.RoleUser, []string{"c0"}, now, now))

	user, err := repo.GetUserByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)
	assert.Equal(t, []string{"c0"}, user.Courses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetUserByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM users WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CreateUser_DuplicateEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO users").
		WithArgs("u1", "Asha", "asha@example.com", model.RoleUser, []string{}, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.CreateUser(context.Background(), &model.User{
		ID:    "u1",
		Name:  "Asha",
		Email: "asha@example.com",
		Role:  model.RoleUser,
	})
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GrantCourse(t *testing.T) {
	now := time.Now().UTC()

	t.Run("appends course", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("UPDATE users").
			WithArgs("u1", "c1").
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow("u1", "Asha", "asha@example.com", model.RoleUser, []string{"c0", "c1"}, now, now))

		user, err := repo.GrantCourse(context.Background(), "u1", "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"c0", "c1"}, user.Courses)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already owned", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("UPDATE users").
			WithArgs("u1", "c1").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("u1").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := repo.GrantCourse(context.Background(), "u1", "c1")
		assert.ErrorIs(t, err, ErrCourseAlreadyOwned)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("user missing", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("UPDATE users").
			WithArgs("ghost", "c1").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("ghost").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := repo.GrantCourse(context.Background(), "ghost", "c1")
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		boom := errors.New("connection reset")
		mock.ExpectQuery("UPDATE users").
			WithArgs("u1", "c1").
			WillReturnError(boom)

		_, err := repo.GrantCourse(context.Background(), "u1", "c1")
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_IncrementCoursePurchased(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("UPDATE courses").
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"purchased"}).AddRow(int64(6)))

	purchased, err := repo.IncrementCoursePurchased(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), purchased)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_IncrementCoursePurchased_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("UPDATE courses").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.IncrementCoursePurchased(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestRepository_GetCourseByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM courses").
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "price", "purchased", "created_at", "updated_at"}).
			AddRow("c1", "Go Basics", int64(499), int64(5), now, now))

	course, err := repo.GetCourseByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(499), course.Price)
	assert.Equal(t, int64(5), course.Purchased)
}

func TestRepository_CreateOrder(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO orders").
		WithArgs("o1", "c1", "u1",
			`{"provider":"razorpay","razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`,
			pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.CreateOrder(context.Background(), &model.Order{
		ID:          "o1",
		CourseID:    "c1",
		UserID:      "u1",
		PaymentInfo: model.NewRazorpayPayment("order_1", "pay_1", "sig"),
		CreatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CreateOrder_WithoutPayment(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO orders").
		WithArgs("o1", "c1", "u1", nil, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.CreateOrder(context.Background(), &model.Order{
		ID:        "o1",
		CourseID:  "c1",
		UserID:    "u1",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var orderCols = []string{"id", "course_id", "user_id", "payment_info", "created_at"}

func TestRepository_ListOrders_Pagination(t *testing.T) {
	repo, mock := newMockRepo(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	payment := []byte(`{"provider":"razorpay","razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`)

	mock.ExpectQuery("FROM orders").
		WithArgs(3).
		WillReturnRows(pgxmock.NewRows(orderCols).
			AddRow("o3", "c1", "u1", payment, base.Add(2*time.Minute)).
			AddRow("o2", "c1", "u2", []byte(nil), base.Add(time.Minute)).
			AddRow("o1", "c2", "u1", payment, base))

	orders, next, err := repo.ListOrders(context.Background(), OrderFilter{}, "", 2)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o3", orders[0].ID)
	require.NotNil(t, orders[0].PaymentInfo)
	assert.Equal(t, "pay_1", orders[0].PaymentInfo.PaymentID)
	assert.Nil(t, orders[1].PaymentInfo)
	require.NotEmpty(t, next)

	cursor, err := decodeCursor(next)
	require.NoError(t, err)
	assert.Equal(t, "o2", cursor.ID)
	assert.True(t, cursor.CreatedAt.Equal(base.Add(time.Minute)))

	mock.ExpectQuery("FROM orders").
		WithArgs(pgxmock.AnyArg(), "o2", 3).
		WillReturnRows(pgxmock.NewRows(orderCols).
			AddRow("o1", "c2", "u1", payment, base))

	orders, next, err = repo.ListOrders(context.Background(), OrderFilter{}, next, 2)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Empty(t, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListOrders_InvalidCursor(t *testing.T) {
	repo, _ := newMockRepo(t)

	tests := []string{"%%%", "bm90LWpzb24", encodeCursor(&PaginationCursor{})}
	for _, cursor := range tests {
		_, _, err := repo.ListOrders(context.Background(), OrderFilter{}, cursor, 10)
		assert.ErrorIs(t, err, ErrInvalidCursor, "cursor %q", cursor)
	}
}

func TestRepository_ListAllOrders(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM orders").
		WithArgs(allOrdersPageSize + 1).
		WillReturnRows(pgxmock.NewRows(orderCols).
			AddRow("o2", "c1", "u1", []byte(nil), now).
			AddRow("o1", "c1", "u2", []byte(nil), now.Add(-time.Minute)))

	orders, err := repo.ListAllOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListAllOrders_Empty(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM orders").
		WithArgs(allOrdersPageSize + 1).
		WillReturnRows(pgxmock.NewRows(orderCols))

	orders, err := repo.ListAllOrders(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestRepository_CreateNotification(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("n1", "u1", "New Order", "You have a new order from Go Basics", "unread", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.CreateNotification(context.Background(), &model.Notification{
		ID:        "n1",
		UserID:    "u1",
		Title:     "New Order",
		Message:   "You have a new order from Go Basics",
		Status:    model.NotificationUnread,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_RevokeAPIKey(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE api_keys SET revoked_at").
		WithArgs("k1", "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE api_keys SET revoked_at").
		WithArgs("k1", "u2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.RevokeAPIKey(context.Background(), "u1", "k1"))
	assert.ErrorIs(t, repo.RevokeAPIKey(context.Background(), "u2", "k1"), ErrAPIKeyNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateAPIKeyLastUsed(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE api_keys SET last_used_at").
		WithArgs("k1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.UpdateAPIKeyLastUsed(context.Background(), "k1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("unique something")))
	assert.False(t, isUniqueViolation(nil))
}
