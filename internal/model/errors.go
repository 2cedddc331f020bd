package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, matching, scheduling, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeCheckinTooShort    = "CHECKIN_TOO_SHORT"
	ErrCodeInvalidSlots       = "INVALID_SLOTS"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeMatchNotFound      = "MATCH_NOT_FOUND"
	ErrCodeMatchNotPending    = "MATCH_NOT_PENDING"
	ErrCodeChatNotFound       = "COFFEE_CHAT_NOT_FOUND"
	ErrCodeSlotNotFound       = "SLOT_NOT_FOUND"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeConcurrentUpdate   = "CONCURRENT_UPDATE"
	ErrCodeCSRFInvalid        = "CSRF_INVALID"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// MinCheckinLength はチェックイン本文の最小文字数。
const MinCheckinLength = 20

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は操作権限がない場合のエラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("この操作を行う権限がありません: %s", reason),
		Category: "auth",
		Action:   "操作対象と自分の役割を確認してください。",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidCredentialsError は管理者パスワードが一致しない場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "パスワードが正しくありません。",
		Category: "auth",
		Action:   "パスワードを確認して再度お試しください。",
	}
}

// NewCheckinTooShortError はチェックイン本文が短すぎる場合のエラーを生成する。
func NewCheckinTooShortError() *APIError {
	return &APIError{
		Code:     ErrCodeCheckinTooShort,
		Message:  fmt.Sprintf("チェックインは%d文字以上で入力してください。", MinCheckinLength),
		Category: "validation",
		Action:   "今週の進捗や困っていることを具体的に書いてください。",
	}
}

// NewInvalidSlotsError は候補日時の提案が不正な場合のエラーを生成する。
func NewInvalidSlotsError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSlots,
		Message:  fmt.Sprintf("候補日時が不正です: %s", reason),
		Category: "validation",
		Action:   fmt.Sprintf("重複しない未来の日時を%d件指定してください。", RequiredSlotCount),
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("ユーザーが見つかりません: %s", userID),
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewMatchNotFoundError はマッチが見つからない場合のエラーを生成する。
func NewMatchNotFoundError(matchID string) *APIError {
	return &APIError{
		Code:     ErrCodeMatchNotFound,
		Message:  fmt.Sprintf("指定されたマッチが見つかりません: %s", matchID),
		Category: "matching",
		Action:   "マッチ一覧を再読み込みしてください。",
	}
}

// NewMatchNotPendingError は応答済みのマッチに再度応答しようとした場合のエラーを生成する。
func NewMatchNotPendingError(status MatchStatus) *APIError {
	return &APIError{
		Code:     ErrCodeMatchNotPending,
		Message:  fmt.Sprintf("このマッチには既に応答済みです（状態: %s）。", status),
		Category: "matching",
		Action:   "マッチ一覧を再読み込みしてください。",
	}
}

// NewChatNotFoundError はコーヒーチャットが見つからない場合のエラーを生成する。
func NewChatNotFoundError(chatID string) *APIError {
	return &APIError{
		Code:     ErrCodeChatNotFound,
		Message:  fmt.Sprintf("指定されたコーヒーチャットが見つかりません: %s", chatID),
		Category: "scheduling",
		Action:   "コーヒーチャット一覧を再読み込みしてください。",
	}
}

// NewSlotNotFoundError は候補日時がチャットに属さない、または選択できない場合のエラーを生成する。
func NewSlotNotFoundError(slotID string) *APIError {
	return &APIError{
		Code:     ErrCodeSlotNotFound,
		Message:  fmt.Sprintf("選択可能な候補日時が見つかりません: %s", slotID),
		Category: "scheduling",
		Action:   "提案された候補日時の中から選択してください。",
	}
}

// NewInvalidTransitionError は現在の状態で許可されない操作のエラーを生成する。
func NewInvalidTransitionError(status ChatStatus, event string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("状態 %s のコーヒーチャットに %s は実行できません。", status, event),
		Category: "scheduling",
		Action:   "コーヒーチャット一覧を再読み込みして最新の状態を確認してください。",
	}
}

// NewConcurrentUpdateError は同時更新により状態が変わっていた場合のエラーを生成する。
func NewConcurrentUpdateError() *APIError {
	return &APIError{
		Code:     ErrCodeConcurrentUpdate,
		Message:  "他の操作によって状態が更新されました。",
		Category: "scheduling",
		Action:   "再読み込みしてから再度お試しください。",
	}
}

// NewCSRFError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限を超過した場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
