package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
)

// PostgresLessonRepo はPostgreSQLを使用したレッスンリポジトリ。
type PostgresLessonRepo struct {
	db *sql.DB
}

// NewPostgresLessonRepo はPostgresLessonRepoを生成する。
func NewPostgresLessonRepo(db *sql.DB) *PostgresLessonRepo {
	return &PostgresLessonRepo{db: db}
}

// ListByCourseID は指定コースのレッスンをorderの昇順で返す。
func (r *PostgresLessonRepo) ListByCourseID(ctx context.Context, courseID string) ([]model.Lesson, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, course_id, title, video_url, content, "order"
		 FROM lessons
		 WHERE course_id = $1
		 ORDER BY "order" ASC, id ASC`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	defer rows.Close()

	lessons := []model.Lesson{}
	for rows.Next() {
		var l model.Lesson
		if err := rows.Scan(&l.ID, &l.CourseID, &l.Title, &l.VideoURL, &l.Content, &l.Order); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lessons: %w", err)
	}
	return lessons, nil
}

// compile-time interface check
var _ LessonRepository = (*PostgresLessonRepo)(nil)
