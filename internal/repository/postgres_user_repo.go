package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
)

const userColumns = `id, email, display_name, photo_url, first_name, last_name, whatsapp_number, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var displayName, photoURL, firstName, lastName, whatsapp sql.NullString
	err := row.Scan(
		&user.ID, &user.Email, &displayName, &photoURL,
		&firstName, &lastName, &whatsapp,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.DisplayName = nullStringValue(displayName)
	user.PhotoURL = nullStringValue(photoURL)
	user.FirstName = nullStringValue(firstName)
	user.LastName = nullStringValue(lastName)
	user.WhatsAppNumber = nullStringValue(whatsapp)
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`,
		email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, photo_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, toNullString(user.DisplayName), toNullString(user.PhotoURL),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	if err := insertIdentity(ctx, tx, identity); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// MergeProfile はupdateで指定されたフィールドのみを更新する。
// 指定のないフィールドはCOALESCEにより既存値が残る。
func (r *PostgresUserRepo) MergeProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET
		    display_name    = COALESCE($2, display_name),
		    photo_url       = COALESCE($3, photo_url),
		    first_name      = COALESCE($4, first_name),
		    last_name       = COALESCE($5, last_name),
		    whatsapp_number = COALESCE($6, whatsapp_number),
		    updated_at      = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id,
		nullableArg(update.DisplayName),
		nullableArg(update.PhotoURL),
		nullableArg(update.FirstName),
		nullableArg(update.LastName),
		nullableArg(update.WhatsAppNumber),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to merge user profile: %w", err)
	}
	return user, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するidentities、sessionsはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// nullableArg はnilポインタをSQLのNULLとして渡す。
func nullableArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
