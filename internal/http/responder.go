package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/application"
)

// retryAfterSeconds is sent with 503 responses for transient store failures.
const retryAfterSeconds = "1"

var (
	errBadRequestBody   = errors.New("無効なリクエスト形式です。")
	errMissingRequester = errors.New("リクエスト元を特定できません。X-Requester-ID ヘッダーを指定してください。")
	errInvalidTimeQuery = errors.New("日時は RFC3339 形式で指定してください。")
	errMissingTimeQuery = errors.New("期間の開始と終了を指定してください。")
	errInvalidBoolQuery = errors.New("真偽値のパラメーターが不正です。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// writeRejection maps a business rejection to its status code. Overlaps carry
// the conflicting booking.
func (r responder) writeRejection(ctx context.Context, w http.ResponseWriter, rejection *application.Rejection) {
	if rejection == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, nil)
		return
	}

	switch rejection.Reason {
	case application.ReasonOverlap:
		resp := errorResponse{
			ErrorCode: "BOOKING_OVERLAP",
			Message:   "指定された時間帯は既に予約されています。",
		}
		if rejection.Conflict != nil {
			conflict := toBookingDTO(*rejection.Conflict)
			resp.Conflict = &conflict
		}
		r.writeJSON(ctx, w, http.StatusConflict, resp)
	case application.ReasonInvalidInterval:
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "INVALID_INTERVAL",
			Message:   "終了日時は開始日時より後である必要があります。",
		})
	case application.ReasonRoomUnavailable:
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ROOM_UNAVAILABLE",
			Message:   "指定された会議室は利用できません。",
		})
	case application.ReasonForbidden:
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "この操作を実行する権限がありません。",
		})
	case application.ReasonNotFound:
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: "NOT_FOUND",
			Message:   "指定されたリソースが見つかりません。",
		})
	default:
		r.writeError(ctx, w, http.StatusInternalServerError, nil)
	}
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var rejection *application.Rejection
	if errors.As(err, &rejection) {
		r.writeRejection(ctx, w, rejection)
		return
	}

	var failure *application.StoreFailure
	if errors.As(err, &failure) {
		w.Header().Set("Retry-After", retryAfterSeconds)
		resp := errorResponse{ErrorCode: "STORE_UNAVAILABLE", Message: "一時的に処理できません。しばらくしてから再試行してください。"}
		if failure.Timeout {
			resp = errorResponse{ErrorCode: "LOCK_TIMEOUT", Message: "混雑のため処理がタイムアウトしました。しばらくしてから再試行してください。"}
		}
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, resp)
		return
	}

	switch {
	case errors.Is(err, application.ErrForbidden):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "この操作を実行する権限がありません。",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: "同じリソースが既に存在します。"})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "入力内容に誤りがあります。",
				Errors:  localizeValidationErrors(vErr),
			})
			return
		}

		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusMethodNotAllowed:
		return "許可されていないメソッドです。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	case http.StatusServiceUnavailable:
		return "一時的に処理できません。しばらくしてから再試行してください。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "name is required":
		return "名称は必須です。"
	case "name must be at most 100 characters":
		return "名称は100文字以内で指定してください。"
	case "detail must be at most 1000 characters":
		return "詳細は1000文字以内で指定してください。"
	case "branch_id is required":
		return "拠点 ID は必須です。"
	case "branch does not exist":
		return "指定された拠点は存在しません。"
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflict  *bookingDTO       `json:"conflict,omitempty"`
}
