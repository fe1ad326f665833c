// Package enrollment はコース受講登録のドメインロジックを提供する。
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/repository"
)

// ErrMissingMetadata は受講登録に必要なユーザーIDまたはコースIDが空であることを表す。
// 同じイベントを再送されても結果は変わらないため、呼び出し側はリトライを促さない。
var ErrMissingMetadata = errors.New("enrollment metadata is missing user_id or course_id")

// Service は受講登録のサービス層。
type Service struct {
	enrollmentRepo repository.EnrollmentRepository
	courseRepo     repository.CourseRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(enrollmentRepo repository.EnrollmentRepository, courseRepo repository.CourseRepository) *Service {
	return &Service{
		enrollmentRepo: enrollmentRepo,
		courseRepo:     courseRepo,
	}
}

// UpsertEnrollment は決済済みのコース受講登録を書き込む。
// キーはuserID + "_" + courseIDで、同じ組に対する再実行は同じレコードを上書きする。
// enrolled_atはDBの時刻、進捗は0にリセットされる。
// 書き込みに失敗した場合は*model.PersistenceErrorを返す。
func (s *Service) UpsertEnrollment(ctx context.Context, userID, courseID, courseTitle, paymentReference string) (*model.Enrollment, error) {
	if userID == "" || courseID == "" {
		return nil, ErrMissingMetadata
	}

	record := &model.Enrollment{
		ID:                 model.EnrollmentID(userID, courseID),
		UserID:             userID,
		CourseID:           courseID,
		CourseTitle:        courseTitle,
		PaymentProvider:    model.PaymentProviderPaystack,
		PaymentReference:   paymentReference,
		ProgressPercentage: 0,
	}

	saved, err := s.enrollmentRepo.Upsert(ctx, record)
	if err != nil {
		return nil, &model.PersistenceError{
			Op:       "upsert enrollment",
			UserID:   userID,
			CourseID: courseID,
			Err:      err,
		}
	}

	slog.Info("enrollment upserted",
		slog.String("enrollment_id", saved.ID),
		slog.String("user_id", userID),
		slog.String("course_id", courseID),
		slog.String("payment_reference", paymentReference),
	)

	return saved, nil
}

// IsEnrolled は指定ユーザーが指定コースに受講登録済みかを返す。
func (s *Service) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	if userID == "" || courseID == "" {
		return false, nil
	}
	e, err := s.enrollmentRepo.FindByID(ctx, model.EnrollmentID(userID, courseID))
	if err != nil {
		return false, fmt.Errorf("failed to find enrollment: %w", err)
	}
	return e != nil, nil
}

// ListEnrolledCourses は指定ユーザーが受講登録しているコースを返す。
// 受講登録があってもコースが存在しない場合は結果から除外する。
func (s *Service) ListEnrolledCourses(ctx context.Context, userID string) ([]model.Course, error) {
	enrollments, err := s.enrollmentRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	if len(enrollments) == 0 {
		return []model.Course{}, nil
	}

	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.CourseID)
	}

	courses, err := s.courseRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrolled courses: %w", err)
	}

	if skipped := len(ids) - len(courses); skipped > 0 {
		slog.Warn("enrollments reference missing courses",
			slog.String("user_id", userID),
			slog.Int("skipped", skipped),
		)
	}

	return courses, nil
}
