package handler

import (
	"context"
	"net/http"

	"github.com/EtimGeorge/NexusAcademy-project/internal/middleware"
	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	// UpdateProfile は指定された項目だけをマージ更新する。
	UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.User, error)
	// Withdraw はユーザーの退会処理を実行する。
	// sessions、user、identitiesを削除し、受講登録は決済記録として残す。
	Withdraw(ctx context.Context, userID string) error
}

// EnrolledCourseLister は受講中コースの取得に必要なインターフェース。
type EnrolledCourseLister interface {
	ListEnrolledCourses(ctx context.Context, userID string) ([]model.Course, error)
}

// UserHandler はログインユーザー自身の情報を扱うHTTPハンドラー。
type UserHandler struct {
	service     UserServiceInterface
	enrollments EnrolledCourseLister
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, enrollments EnrolledCourseLister) *UserHandler {
	return &UserHandler{
		service:     service,
		enrollments: enrollments,
	}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
// 省略した項目は変更しない。
type updateProfileRequest struct {
	DisplayName    *string `json:"display_name"`
	PhotoURL       *string `json:"photo_url"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	WhatsAppNumber *string `json:"whatsapp_number"`
}

// GetProfile はログインユーザーのプロフィールを返す。
// GET /api/me/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	u, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// UpdateProfile はプロフィールをマージ更新する。
// PUT /api/me/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, model.ProfileUpdate{
		DisplayName:    req.DisplayName,
		PhotoURL:       req.PhotoURL,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		WhatsAppNumber: req.WhatsAppNumber,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// ListEnrolledCourses はログインユーザーが受講中のコースを返す。
// GET /api/me/courses
func (h *UserHandler) ListEnrolledCourses(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	courses, err := h.enrollments.ListEnrolledCourses(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCourseResponses(courses))
}

// Withdraw はユーザーの退会処理を実行し、セッションCookieを破棄する。
// DELETE /api/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
