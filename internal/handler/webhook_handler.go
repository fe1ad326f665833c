package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/EtimGeorge/NexusAcademy-project/internal/enrollment"
	"github.com/EtimGeorge/NexusAcademy-project/internal/metrics"
	"github.com/EtimGeorge/NexusAcademy-project/internal/middleware"
	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/paystack"
)

// maxWebhookBodySize はWebhookリクエストボディの読み込み上限。
const maxWebhookBodySize = 1 << 20

// Webhookのレスポンス本文（text/plain）
const (
	webhookInvalidSignature = "Invalid signature"
	webhookInvalidPayload   = "Invalid payload"
	webhookPayloadTooLarge  = "Payload too large"
	webhookIgnored          = "Event ignored"
	webhookEnrolled         = "Enrollment created successfully."
	webhookInternalError    = "Internal server error."
)

// EnrollmentUpserter はWebhookハンドラーが必要とする受講登録の書き込みインターフェース。
type EnrollmentUpserter interface {
	UpsertEnrollment(ctx context.Context, userID, courseID, courseTitle, paymentReference string) (*model.Enrollment, error)
}

// WebhookHandler はPaystackの決済Webhookを受け取り、決済成功時に受講登録を書き込む。
// 同じイベントが再送されても受講登録IDが同じため、結果は1件のレコードに収束する。
type WebhookHandler struct {
	secret   string
	enroller EnrollmentUpserter
	recorder metrics.WebhookRecorder
}

// NewWebhookHandler はWebhookHandlerを生成する。
// secretは署名検証に使うPaystackのシークレットキー。
func NewWebhookHandler(secret string, enroller EnrollmentUpserter, recorder metrics.WebhookRecorder) *WebhookHandler {
	return &WebhookHandler{
		secret:   secret,
		enroller: enroller,
		recorder: recorder,
	}
}

// ServeHTTP はWebhookリクエストを処理する。
// POST <PAYSTACK_WEBHOOK_PATH>
//
// 署名不一致は401、charge.success以外は200で無視、受講登録の成功は200、
// 書き込み失敗は500（Paystackの再送を促す）を返す。内部エラーの詳細はログのみに残す。
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFromContext(r.Context())

	// 署名は受信したままのバイト列に対して計算するため、JSONとして解釈する前に全体を読む
	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(w, requestID, http.StatusRequestEntityTooLarge, webhookPayloadTooLarge, err)
			return
		}
		h.reject(w, requestID, http.StatusBadRequest, webhookInvalidPayload, err)
		return
	}

	if !paystack.Verify(rawBody, r.Header.Get(paystack.SignatureHeader), h.secret) {
		h.reject(w, requestID, http.StatusUnauthorized, webhookInvalidSignature, paystack.ErrInvalidSignature)
		return
	}

	event, err := paystack.ParseEvent(rawBody)
	if err != nil {
		h.reject(w, requestID, http.StatusBadRequest, webhookInvalidPayload, err)
		return
	}

	if !event.IsChargeSuccess() {
		slog.Info("paystack event ignored",
			slog.String("request_id", requestID),
			slog.String("event", event.Event),
		)
		h.record(metrics.WebhookIgnored)
		writeText(w, http.StatusOK, webhookIgnored)
		return
	}

	meta := event.Data.Metadata
	_, err = h.enroller.UpsertEnrollment(r.Context(), meta.UserID, meta.CourseID, meta.CourseTitle, event.Data.Reference)
	switch {
	case errors.Is(err, enrollment.ErrMissingMetadata):
		// 再送されても結果は変わらないため200で受け取る
		slog.Warn("paystack charge without enrollment metadata",
			slog.String("request_id", requestID),
			slog.String("payment_reference", event.Data.Reference),
			slog.String("user_id", meta.UserID),
			slog.String("course_id", meta.CourseID),
		)
		h.record(metrics.WebhookMissingMetadata)
		writeText(w, http.StatusOK, webhookIgnored)

	case err != nil:
		attrs := []any{
			slog.String("request_id", requestID),
			slog.String("payment_reference", event.Data.Reference),
			slog.String("error", err.Error()),
		}
		var pErr *model.PersistenceError
		if errors.As(err, &pErr) {
			attrs = append(attrs, slog.String("user_id", pErr.UserID), slog.String("course_id", pErr.CourseID))
		}
		slog.Error("failed to upsert enrollment", attrs...)
		h.record(metrics.WebhookFailed)
		writeText(w, http.StatusInternalServerError, webhookInternalError)

	default:
		if h.recorder != nil {
			h.recorder.RecordEnrollmentUpserted()
		}
		h.record(metrics.WebhookEnrolled)
		writeText(w, http.StatusOK, webhookEnrolled)
	}
}

func (h *WebhookHandler) reject(w http.ResponseWriter, requestID string, status int, body string, err error) {
	slog.Warn("paystack webhook rejected",
		slog.String("request_id", requestID),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	h.record(metrics.WebhookRejected)
	writeText(w, status, body)
}

func (h *WebhookHandler) record(outcome string) {
	if h.recorder != nil {
		h.recorder.RecordWebhook(outcome)
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, body)
}
