package common

import (
	"errors"
	"net/http"
)

// ErrorKind 錯誤分類，讓呼叫端區分處理方式
type ErrorKind string

const (
	KindUserAction  ErrorKind = "user_action"  // 需要使用者補齊資料
	KindTransient   ErrorKind = "transient"    // 外部服務或儲存暫時失敗，可重試
	KindDataProblem ErrorKind = "data_problem" // 資料本身有問題（例如食譜庫為空）
)

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string    // 錯誤代碼
	Message string    // 錯誤信息
	Kind    ErrorKind // 錯誤分類
	Err     error     // 原始錯誤
	Status  int       // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 取出原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is 以錯誤代碼比對，讓包裝後的錯誤仍能被 errors.Is 辨識
func (e *CustomError) Is(target error) bool {
	var t *CustomError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Wrap 以預定義錯誤包裝原始錯誤
func (e *CustomError) Wrap(err error) *CustomError {
	return &CustomError{
		Code:    e.Code,
		Message: e.Message,
		Kind:    e.Kind,
		Status:  e.Status,
		Err:     err,
	}
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func newKindError(code, message string, kind ErrorKind, status int) *CustomError {
	e := NewError(code, message, status, nil)
	e.Kind = kind
	return e
}

// AsCustomError 轉換為 CustomError，未知錯誤視為內部錯誤
func AsCustomError(err error) *CustomError {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce
	}
	return ErrInternalError.Wrap(err)
}

// KindOf 取得錯誤分類
func KindOf(err error) ErrorKind {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// 預定義錯誤代碼
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"    // 400
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"  // 429
	ErrCodeInternalError    = "INTERNAL_ERROR"     // 500
	ErrCodeGatewayTimeout   = "GATEWAY_TIMEOUT"    // 504
	ErrCodeProfileNotFound  = "PROFILE_NOT_FOUND"  // 404
	ErrCodeMissingProfile   = "MISSING_PROFILE_DATA"
	ErrCodeEmptyRecipePool  = "EMPTY_RECIPE_POOL"
	ErrCodeExternal         = "EXTERNAL_SERVICE_UNAVAILABLE"
	ErrCodePersistence      = "PERSISTENCE_FAILURE"
	ErrCodeCacheMiss        = "CACHE_MISS"
	ErrCodeCacheFull        = "CACHE_FULL"
	ErrCodeCacheDisabled    = "CACHE_DISABLED"
	ErrCodePlanNotFound     = "PLAN_NOT_FOUND"
	ErrCodeInvalidAIContent = "INVALID_AI_CONTENT"
)

// 預定義錯誤
var (
	// 客戶端錯誤
	ErrInvalidRequest  = NewError(ErrCodeInvalidRequest, "invalid request", http.StatusBadRequest, nil)
	ErrTooManyRequests = NewError(ErrCodeTooManyRequests, "too many requests", http.StatusTooManyRequests, nil)

	// 服務器錯誤
	ErrInternalError  = NewError(ErrCodeInternalError, "internal error", http.StatusInternalServerError, nil)
	ErrGatewayTimeout = NewError(ErrCodeGatewayTimeout, "gateway timeout", http.StatusGatewayTimeout, nil)

	// 業務錯誤
	ErrProfileNotFound     = newKindError(ErrCodeProfileNotFound, "profile not found", KindUserAction, http.StatusNotFound)
	ErrMissingProfileData  = newKindError(ErrCodeMissingProfile, "profile is missing bmr, activity level or goal", KindUserAction, http.StatusUnprocessableEntity)
	ErrEmptyRecipePool     = newKindError(ErrCodeEmptyRecipePool, "recipe catalog is empty", KindDataProblem, http.StatusUnprocessableEntity)
	ErrExternalUnavailable = newKindError(ErrCodeExternal, "external service unavailable", KindTransient, http.StatusServiceUnavailable)
	ErrPersistenceFailure  = newKindError(ErrCodePersistence, "failed to persist meal plan", KindTransient, http.StatusServiceUnavailable)
	ErrPlanNotFound        = newKindError(ErrCodePlanNotFound, "meal plan not found", KindUserAction, http.StatusNotFound)
	ErrInvalidAIContent    = newKindError(ErrCodeInvalidAIContent, "AI response could not be parsed", KindTransient, http.StatusBadGateway)

	// 快取
	ErrCacheMiss     = NewError(ErrCodeCacheMiss, "cache miss", http.StatusNotFound, nil)
	ErrCacheFull     = NewError(ErrCodeCacheFull, "cache is full", http.StatusServiceUnavailable, nil)
	ErrCacheDisabled = NewError(ErrCodeCacheDisabled, "cache is disabled", http.StatusServiceUnavailable, nil)
)
