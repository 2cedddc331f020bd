// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/founderhub/internal/middleware"
	"github.com/hitoshi/founderhub/internal/model"
)

// maxBodyBytes はJSONリクエストボディの上限。
const maxBodyBytes = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

// writeJSON はレスポンスをJSONで書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// messageResponse は操作結果メッセージのみを返すレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// decodeAndValidate はリクエストボディをデコードし、validateタグで検証する。
// 失敗時はINVALID_REQUESTのAPIErrorを返す。
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return model.NewInvalidRequestError("JSONを解析できません")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return model.NewInvalidRequestError(describeValidation(verrs))
		}
		return model.NewInvalidRequestError(err.Error())
	}
	return nil
}

// describeValidation は検証エラーをフィールド単位の短い説明に変換する。
func describeValidation(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" は必須です")
		case "email":
			parts = append(parts, field+" はメールアドレス形式で指定してください")
		case "len":
			parts = append(parts, fmt.Sprintf("%s は%s件で指定してください", field, fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s は%s以下で指定してください", field, fe.Param()))
		default:
			parts = append(parts, field+" が不正です")
		}
	}
	return strings.Join(parts, ", ")
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは詳細をログのみに残す
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeCheckinTooShort, model.ErrCodeInvalidSlots:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeCSRFInvalid:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound, model.ErrCodeMatchNotFound, model.ErrCodeChatNotFound, model.ErrCodeSlotNotFound:
		return http.StatusNotFound
	case model.ErrCodeMatchNotPending, model.ErrCodeInvalidTransition, model.ErrCodeConcurrentUpdate:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// sessionUserID はセッションミドルウェアが注入したユーザーIDを返す。
// 取得できない場合は401を書き込み、falseを返す。
func sessionUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

// requireSelf はパスのユーザーIDがセッションユーザーと一致することを確認する。
func requireSelf(w http.ResponseWriter, r *http.Request, pathUserID string) (string, bool) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return "", false
	}
	if userID != pathUserID {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError("他のユーザーのデータは参照できません"))
		return "", false
	}
	return userID, true
}
