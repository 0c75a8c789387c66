package scheduler

import (
	"errors"
	"fmt"
)

// ExpectedError 预期内的采集失败（权限不足、被扫描进程中途消失等生命周期竞态）。
// 与非预期失败同样计入连续失败次数，但以较低级别记录日志。
type ExpectedError struct {
	Err error
}

func (e *ExpectedError) Error() string {
	return fmt.Sprintf("expected collection failure: %v", e.Err)
}

func (e *ExpectedError) Unwrap() error {
	return e.Err
}

// Expected 将错误标记为预期内失败
func Expected(err error) error {
	if err == nil {
		return nil
	}
	return &ExpectedError{Err: err}
}

// IsExpected 判断错误是否为预期内失败
func IsExpected(err error) bool {
	var e *ExpectedError
	return errors.As(err, &e)
}
