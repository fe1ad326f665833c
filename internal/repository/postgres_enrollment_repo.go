package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
)

const enrollmentColumns = `id, user_id, course_id, course_title, enrolled_at, payment_provider, payment_reference, progress_percentage`

// PostgresEnrollmentRepo はPostgreSQLを使用した受講登録リポジトリ。
type PostgresEnrollmentRepo struct {
	db *sql.DB
}

// NewPostgresEnrollmentRepo はPostgresEnrollmentRepoを生成する。
func NewPostgresEnrollmentRepo(db *sql.DB) *PostgresEnrollmentRepo {
	return &PostgresEnrollmentRepo{db: db}
}

func scanEnrollment(row rowScanner) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	err := row.Scan(
		&e.ID, &e.UserID, &e.CourseID, &e.CourseTitle, &e.EnrolledAt,
		&e.PaymentProvider, &e.PaymentReference, &e.ProgressPercentage,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Upsert はenrollment.IDをキーに受講登録を丸ごと書き込む。
// 既存レコードはすべてのフィールドが上書きされ、progress_percentageも引数の値に戻る。
// enrolled_atは常にDBの現在時刻。
func (r *PostgresEnrollmentRepo) Upsert(ctx context.Context, enrollment *model.Enrollment) (*model.Enrollment, error) {
	saved, err := scanEnrollment(r.db.QueryRowContext(ctx,
		`INSERT INTO enrollments (id, user_id, course_id, course_title, enrolled_at,
		                          payment_provider, payment_reference, progress_percentage)
		 VALUES ($1, $2, $3, $4, now(), $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		    user_id             = EXCLUDED.user_id,
		    course_id           = EXCLUDED.course_id,
		    course_title        = EXCLUDED.course_title,
		    enrolled_at         = EXCLUDED.enrolled_at,
		    payment_provider    = EXCLUDED.payment_provider,
		    payment_reference   = EXCLUDED.payment_reference,
		    progress_percentage = EXCLUDED.progress_percentage
		 RETURNING `+enrollmentColumns,
		enrollment.ID, enrollment.UserID, enrollment.CourseID, enrollment.CourseTitle,
		enrollment.PaymentProvider, enrollment.PaymentReference, enrollment.ProgressPercentage,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert enrollment: %w", err)
	}
	return saved, nil
}

// FindByID は指定IDの受講登録を取得する。見つからない場合はnilを返す。
func (r *PostgresEnrollmentRepo) FindByID(ctx context.Context, id string) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find enrollment: %w", err)
	}
	return e, nil
}

// ListByUserID は指定ユーザーの受講登録を登録日時の新しい順で返す。
func (r *PostgresEnrollmentRepo) ListByUserID(ctx context.Context, userID string) ([]model.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments
		 WHERE user_id = $1
		 ORDER BY enrolled_at DESC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := []model.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enrollments: %w", err)
	}
	return enrollments, nil
}

// compile-time interface check
var _ EnrollmentRepository = (*PostgresEnrollmentRepo)(nil)
