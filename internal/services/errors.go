package services

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired 未登录
	ErrAuthRequired = errors.New("authentication required")
	// ErrPermissionDenied 已登录但不是作者或管理员
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation 输入不合法，具体原因包装在错误信息中
	ErrValidation = errors.New("validation failed")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
