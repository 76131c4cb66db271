package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	// Жизненный цикл
	ErrCodeAlreadyInitialized ErrorCode = "ALREADY_INITIALIZED"
	ErrCodeNotInitialized     ErrorCode = "NOT_INITIALIZED"

	// Авторизация
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Машина состояний
	ErrCodeInvalidStatus          ErrorCode = "INVALID_STATUS"
	ErrCodeDisputeNotOpen         ErrorCode = "DISPUTE_NOT_OPEN"
	ErrCodeDisputeAlreadyExists   ErrorCode = "DISPUTE_ALREADY_EXISTS"
	ErrCodeDisputeAlreadyResolved ErrorCode = "DISPUTE_ALREADY_RESOLVED"

	// Валидация
	ErrCodeInvalidAmount        ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidFeePercentage ErrorCode = "INVALID_FEE_PERCENTAGE"
	ErrCodeInvalidDisputeResult ErrorCode = "INVALID_DISPUTE_RESULT"

	// Ресурсы
	ErrCodeInsufficientFunds   ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"

	// Троттлинг
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Не найдено
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Конфликт / внутренние
	ErrCodeConflict ErrorCode = "CONFLICT"
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с обёрнутыми значениями.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	case ErrCodeInvalidAmount, ErrCodeInvalidFeePercentage, ErrCodeInvalidDisputeResult, ErrCodeNotInitialized:
		return http.StatusBadRequest
	case ErrCodeAlreadyInitialized, ErrCodeDisputeAlreadyExists, ErrCodeDisputeAlreadyResolved, ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeInvalidStatus, ErrCodeDisputeNotOpen:
		return http.StatusUnprocessableEntity
	case ErrCodeInsufficientFunds, ErrCodeInsufficientBalance:
		return http.StatusPaymentRequired
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или ErrCodeInternal для нетипизированных ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return IsCode(err, ErrCodeNotFound)
}

func IsUnauthorized(err error) bool {
	return IsCode(err, ErrCodeUnauthorized)
}

// Типовые ошибки компонентов. Сообщения уходят клиенту как есть.
var (
	ErrEscrowAlreadyExists    = New(ErrCodeAlreadyInitialized, "эскроу для этой работы уже создан")
	ErrEscrowNotInitialized   = New(ErrCodeNotInitialized, "эскроу не инициализирован")
	ErrEscrowNotFound         = New(ErrCodeNotFound, "эскроу не найден")
	ErrUnauthorized           = New(ErrCodeUnauthorized, "недостаточно прав для операции")
	ErrInvalidStatus          = New(ErrCodeInvalidStatus, "недопустимый статус эскроу для этой операции")
	ErrDisputeNotOpen         = New(ErrCodeDisputeNotOpen, "спор по эскроу не открыт")
	ErrDisputeAlreadyExists   = New(ErrCodeDisputeAlreadyExists, "спор по этой работе уже существует")
	ErrDisputeAlreadyResolved = New(ErrCodeDisputeAlreadyResolved, "спор уже разрешён")
	ErrDisputeNotFound        = New(ErrCodeNotFound, "спор не найден")
	ErrInvalidAmount          = New(ErrCodeInvalidAmount, "сумма должна быть положительной")
	ErrInvalidFeePercentage   = New(ErrCodeInvalidFeePercentage, "ставка комиссии должна быть в диапазоне 0-10000 б.п.")
	ErrInsufficientFunds      = New(ErrCodeInsufficientFunds, "недостаточно средств на балансе")
	ErrInsufficientBalance    = New(ErrCodeInsufficientBalance, "недостаточно средств на платформенном балансе")
	ErrRateLimitExceeded      = New(ErrCodeRateLimitExceeded, "превышен лимит вызовов, попробуйте позже")
	ErrPremiumAlreadyExists   = New(ErrCodeConflict, "пользователь уже имеет премиум-статус")
	ErrPremiumNotFound        = New(ErrCodeNotFound, "премиум-пользователь не найден")
	ErrConfigNotInitialized   = New(ErrCodeNotInitialized, "конфигурация ещё не инициализирована")
	ErrConfigAlreadyExists    = New(ErrCodeAlreadyInitialized, "конфигурация уже инициализирована")
)
