package store

import (
	"errors"
	"fmt"
)

// ErrNotFound 文档不存在
var ErrNotFound = errors.New("document not found")

// ErrMalformed 文档字段不满足解码校验
var ErrMalformed = errors.New("malformed document")

// BackendError 底层存储调用失败，保留原始错误信息
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Wrap 将后端错误包装为 BackendError；nil、ErrNotFound 以及已包装的错误原样返回
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}
