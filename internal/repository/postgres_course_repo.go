package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
)

const courseColumns = `id, title, description, image_url, category, level, duration, modules, price, created_at`

// PostgresCourseRepo はPostgreSQLを使用したコースリポジトリ。
type PostgresCourseRepo struct {
	db *sql.DB
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db *sql.DB) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

func scanCourse(row rowScanner) (*model.Course, error) {
	c := &model.Course{}
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.ImageURL, &c.Category,
		&c.Level, &c.Duration, &c.Modules, &c.Price, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByID(ctx context.Context, id string) (*model.Course, error) {
	c, err := scanCourse(r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course: %w", err)
	}
	return c, nil
}

// List はコース一覧をタイトル順で返す。categoryが空の場合は全件を返す。
func (r *PostgresCourseRepo) List(ctx context.Context, category string) ([]model.Course, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses
		 WHERE $1::text = '' OR category = $1::text
		 ORDER BY title ASC, id ASC`,
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	return collectCourses(rows)
}

// ListByIDs は指定IDのうち存在するコースのみをidsの順序で返す。
// 存在しないIDは結果から除外される。
func (r *PostgresCourseRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Course, error) {
	if len(ids) == 0 {
		return []model.Course{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses
		 WHERE id = ANY($1::text[])
		 ORDER BY array_position($1::text[], id::text)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses by ids: %w", err)
	}
	defer rows.Close()

	return collectCourses(rows)
}

func collectCourses(rows *sql.Rows) ([]model.Course, error) {
	courses := []model.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}
	return courses, nil
}

// compile-time interface check
var _ CourseRepository = (*PostgresCourseRepo)(nil)
