package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
)

// CourseServiceInterface はコースハンドラーが必要とするサービスインターフェース。
type CourseServiceInterface interface {
	ListCourses(ctx context.Context, category string) ([]model.Course, error)
	GetCourse(ctx context.Context, courseID string) (*model.Course, error)
	ListLessons(ctx context.Context, courseID string) ([]model.Lesson, error)
}

// CourseHandler はコースカタログとレッスンのHTTPハンドラー。
type CourseHandler struct {
	service CourseServiceInterface
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(service CourseServiceInterface) *CourseHandler {
	return &CourseHandler{service: service}
}

// courseResponse はコース情報のAPIレスポンス。
// PriceはNGN単位。
type courseResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Category    string `json:"category"`
	Level       string `json:"level"`
	Duration    string `json:"duration"`
	Modules     int    `json:"modules"`
	Price       int64  `json:"price"`
}

type lessonResponse struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
	VideoURL string `json:"video_url"`
	Content  string `json:"content"`
	Order    int    `json:"order"`
}

func toCourseResponse(c *model.Course) courseResponse {
	return courseResponse{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		ImageURL:    c.ImageURL,
		Category:    c.Category,
		Level:       c.Level,
		Duration:    c.Duration,
		Modules:     c.Modules,
		Price:       c.Price,
	}
}

func toCourseResponses(courses []model.Course) []courseResponse {
	res := make([]courseResponse, 0, len(courses))
	for i := range courses {
		res = append(res, toCourseResponse(&courses[i]))
	}
	return res
}

// ListCourses はコース一覧を返す。
// GET /api/courses?category=xxx
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.ListCourses(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCourseResponses(courses))
}

// GetCourse はコース詳細を返す。
// GET /api/courses/{id}
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.service.GetCourse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCourseResponse(course))
}

// ListLessons はコースのレッスンを再生順で返す。
// GET /api/courses/{id}/lessons
func (h *CourseHandler) ListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.service.ListLessons(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res := make([]lessonResponse, 0, len(lessons))
	for _, l := range lessons {
		res = append(res, lessonResponse{
			ID:       l.ID,
			CourseID: l.CourseID,
			Title:    l.Title,
			VideoURL: l.VideoURL,
			Content:  l.Content,
			Order:    l.Order,
		})
	}
	writeJSON(w, http.StatusOK, res)
}
