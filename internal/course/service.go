// Package course はコースカタログとレッスンの参照機能を提供する。
package course

import (
	"context"
	"fmt"
	"strings"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/repository"
)

// Service はコース参照のサービス層。
type Service struct {
	courseRepo repository.CourseRepository
	lessonRepo repository.LessonRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(courseRepo repository.CourseRepository, lessonRepo repository.LessonRepository) *Service {
	return &Service{
		courseRepo: courseRepo,
		lessonRepo: lessonRepo,
	}
}

// ListCourses はコース一覧をタイトル順で返す。
// categoryが空または"all"の場合は全カテゴリを返す。
func (s *Service) ListCourses(ctx context.Context, category string) ([]model.Course, error) {
	category = strings.TrimSpace(category)
	if strings.EqualFold(category, "all") {
		category = ""
	}

	courses, err := s.courseRepo.List(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("コース一覧の取得に失敗しました: %w", err)
	}
	if courses == nil {
		courses = []model.Course{}
	}
	return courses, nil
}

// GetCourse は指定IDのコースを返す。存在しない場合はCOURSE_NOT_FOUNDを返す。
func (s *Service) GetCourse(ctx context.Context, courseID string) (*model.Course, error) {
	c, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("コースの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}
	return c, nil
}

// ListLessons は指定コースのレッスンを再生順で返す。
// コースが存在しない場合はCOURSE_NOT_FOUNDを返す。
func (s *Service) ListLessons(ctx context.Context, courseID string) ([]model.Lesson, error) {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}

	lessons, err := s.lessonRepo.ListByCourseID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("レッスンの取得に失敗しました: %w", err)
	}
	if lessons == nil {
		lessons = []model.Lesson{}
	}
	return lessons, nil
}
