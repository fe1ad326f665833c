package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
)

// PostgresIdentityRepo はPostgreSQLを使用したidentityリポジトリ。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
// passwordプロバイダの場合、provider_user_idは小文字化したメールアドレス。
// 見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	identity := &model.Identity{}
	var passwordHash sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_user_id, password_hash, created_at
		 FROM identities
		 WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	).Scan(&identity.ID, &identity.UserID, &identity.Provider, &identity.ProviderUserID, &passwordHash, &identity.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	identity.PasswordHash = nullStringValue(passwordHash)

	return identity, nil
}

// Create は既存ユーザーにidentityを追加する。
func (r *PostgresIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	return insertIdentity(ctx, r.db, identity)
}

// UpdatePasswordHash はpasswordプロバイダのidentityのハッシュを置き換える。
func (r *PostgresIdentityRepo) UpdatePasswordHash(ctx context.Context, identityID, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE identities SET password_hash = $2 WHERE id = $1 AND provider = 'password'`,
		identityID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("password identity not found: %s", identityID)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertIdentity(ctx context.Context, db execer, identity *model.Identity) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_user_id, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID,
		toNullString(identity.PasswordHash), identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}
	return nil
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
