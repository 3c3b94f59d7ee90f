package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/onpipiece/onpi-platform/internal/model"
)

// sqlStore backs the record set with a relational database: Postgres (the
// hosted Supabase case) via the pgx stdlib driver, or SQLite for local
// deployments. Timestamps travel as RFC3339 text and list/object fields as
// JSON text, which keeps both drivers on the same queries.
type sqlStore struct {
	db     *sqlx.DB
	driver string
}

func newSQLStore(driver, dsn string) (*sqlStore, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, unavailable("connecting", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := runMigrations(db.DB, driver); err != nil {
		db.Close()
		return nil, unavailable("migrating", err)
	}

	return &sqlStore{db: db, driver: driver}, nil
}

func (s *sqlStore) Kind() string { return "sql" }

func (s *sqlStore) Close(context.Context) error { return s.db.Close() }

// userRow is the substrate-native shape of a record.
type userRow struct {
	ID                string         `db:"id"`
	AccountID         string         `db:"account_id"`
	PasswordHash      sql.NullString `db:"password_hash"`
	DisplayName       string         `db:"display_name"`
	Email             string         `db:"email"`
	MessagingHandle   string         `db:"messaging_handle"`
	Phone             string         `db:"phone"`
	CreatedAt         string         `db:"created_at"`
	SessionToken      string         `db:"session_token"`
	PurchasedPackages string         `db:"purchased_packages"`
	ActivePackage     string         `db:"active_package"`
	ResetToken        sql.NullString `db:"reset_token"`
	ResetExpires      sql.NullString `db:"reset_expires"`
	Balance           float64        `db:"balance"`
	Withdrawals       string         `db:"withdrawals"`
	WalletAddress     sql.NullString `db:"wallet_address"`
	Stake             sql.NullString `db:"stake"`
}

const userColumns = `id, account_id, password_hash, display_name, email, messaging_handle,
	phone, created_at, session_token, purchased_packages, active_package,
	reset_token, reset_expires, balance, withdrawals, wallet_address, stake`

func (r *userRow) toModel() (*model.User, error) {
	u := &model.User{
		ID:              r.ID,
		AccountID:       r.AccountID,
		PasswordHash:    r.PasswordHash.String,
		DisplayName:     r.DisplayName,
		Email:           r.Email,
		MessagingHandle: r.MessagingHandle,
		Phone:           r.Phone,
		SessionToken:    r.SessionToken,
		ActivePackage:   r.ActivePackage,
		ResetToken:      r.ResetToken.String,
		Balance:         r.Balance,
		WalletAddress:   r.WalletAddress.String,
	}

	createdAt, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		return nil, malformed("parsing created_at", err)
	}
	u.CreatedAt = createdAt

	if r.ResetExpires.Valid && r.ResetExpires.String != "" {
		expires, err := time.Parse(time.RFC3339, r.ResetExpires.String)
		if err != nil {
			return nil, malformed("parsing reset_expires", err)
		}
		u.ResetExpires = &expires
	}

	if err := json.Unmarshal([]byte(orEmptyArray(r.PurchasedPackages)), &u.PurchasedPackages); err != nil {
		return nil, malformed("parsing purchased_packages", err)
	}
	if err := json.Unmarshal([]byte(orEmptyArray(r.Withdrawals)), &u.Withdrawals); err != nil {
		return nil, malformed("parsing withdrawals", err)
	}
	if r.Stake.Valid && r.Stake.String != "" {
		if err := json.Unmarshal([]byte(r.Stake.String), &u.Stake); err != nil {
			return nil, malformed("parsing stake", err)
		}
	}

	return u, nil
}

func orEmptyArray(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "[]"
	}
	return raw
}

func (s *sqlStore) getOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	row := userRow{}
	err := s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("querying user", err)
	}
	return row.toModel()
}

func (s *sqlStore) ByAccountID(ctx context.Context, accountID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE account_id = $1`
	return s.getOne(ctx, query, accountID)
}

func (s *sqlStore) BySessionToken(ctx context.Context, token string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE session_token = $1`
	return s.getOne(ctx, query, token)
}

func (s *sqlStore) ByResetToken(ctx context.Context, token string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token = $1`
	user, err := s.getOne(ctx, query, token)
	if err != nil {
		return nil, err
	}
	if !user.HasValidReset(time.Now()) {
		return nil, ErrNotFound
	}
	return user, nil
}

func (s *sqlStore) ByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return s.getOne(ctx, query, email)
}

func (s *sqlStore) Insert(ctx context.Context, user *model.User) error {
	packages, err := json.Marshal(user.PurchasedPackages)
	if err != nil {
		return malformed("encoding purchased_packages", err)
	}
	withdrawals := user.Withdrawals
	if withdrawals == nil {
		withdrawals = []model.Withdrawal{}
	}
	withdrawalsJSON, err := json.Marshal(withdrawals)
	if err != nil {
		return malformed("encoding withdrawals", err)
	}

	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = s.db.ExecContext(ctx, query,
		user.ID,
		user.AccountID,
		nullString(user.PasswordHash),
		user.DisplayName,
		user.Email,
		user.MessagingHandle,
		user.Phone,
		user.CreatedAt.UTC().Format(time.RFC3339),
		user.SessionToken,
		string(packages),
		user.ActivePackage,
		nullString(user.ResetToken),
		nullTime(user.ResetExpires),
		user.Balance,
		string(withdrawalsJSON),
		nullString(user.WalletAddress),
		nullJSON(user.Stake),
	)
	if err != nil {
		// Unique constraint violation wording differs between SQLite and Postgres.
		errStr := err.Error()
		if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value") {
			return fmt.Errorf("%w: %s", ErrConflict, user.AccountID)
		}
		return unavailable("inserting user", err)
	}

	return nil
}

func (s *sqlStore) UpdateFields(ctx context.Context, accountID string, fields Fields) error {
	normalized, err := Normalize(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(normalized) == 0 {
		// Nothing to merge; still report whether the record exists.
		_, err := s.ByAccountID(ctx, accountID)
		return err
	}

	assignments := make([]string, 0, len(normalized))
	args := make([]any, 0, len(normalized)+1)
	for key, value := range normalized {
		native, err := toColumnValue(key, value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		args = append(args, native)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", key, len(args)))
	}
	args = append(args, accountID)

	query := fmt.Sprintf("UPDATE users SET %s WHERE account_id = $%d",
		strings.Join(assignments, ", "), len(args))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return unavailable("updating user", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return unavailable("updating user", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// toColumnValue converts a canonical field value to its substrate-native
// column form: arrays and objects stringify, timestamps format as RFC3339.
func toColumnValue(key string, value any) (any, error) {
	switch key {
	case "purchased_packages", "withdrawals", "stake":
		if value == nil {
			return sql.NullString{}, nil
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", key, err)
		}
		return string(raw), nil
	case "reset_expires":
		t, _ := value.(*time.Time)
		return nullTime(t), nil
	case "balance":
		return value, nil
	case "password_hash", "reset_token", "wallet_address":
		return nullString(value.(string)), nil
	default:
		return value, nil
	}
}

func (s *sqlStore) All(ctx context.Context) ([]model.User, error) {
	rows := []userRow{}
	query := `SELECT ` + userColumns + ` FROM users`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, unavailable("listing users", err)
	}

	users := make([]model.User, 0, len(rows))
	for i := range rows {
		user, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullJSON(v map[string]any) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
