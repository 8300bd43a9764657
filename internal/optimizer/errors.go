package optimizer

import "fmt"

// NetworkError 传输层失败或响应不是合法 JSON
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RejectionError 服务端返回 success:false
type RejectionError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rejected (HTTP %d): %s", e.Op, e.StatusCode, e.Message)
}
