package wizard

import (
	"errors"

	"github.com/kai657/po-adjustment/internal/optimizer"
)

var (
	ErrInvalidFileType      = errors.New("invalid file type")
	ErrIncompleteSubmission = errors.New("both schedule and po files are required")
	ErrUnknownRole          = errors.New("unknown file role")
	ErrUnknownStep          = errors.New("unknown step")
	ErrStepSkipped          = errors.New("steps cannot be skipped")
	ErrStepLocked           = errors.New("step is not reachable yet")
	ErrBusy                 = errors.New("request already in flight")
	ErrInvalidParams        = errors.New("invalid optimize params")
)

// ErrorKind 界面层错误分类
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindInvalidFileType      ErrorKind = "InvalidFileType"
	KindIncompleteSubmission ErrorKind = "IncompleteSubmission"
	KindNetworkFailure       ErrorKind = "NetworkFailure"
	KindServerRejection      ErrorKind = "ServerRejection"
	KindInvalidRequest       ErrorKind = "InvalidRequest"
)

// Kind 将错误映射到分类；未知错误按网络失败处理
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var netErr *optimizer.NetworkError
	var rejErr *optimizer.RejectionError
	switch {
	case errors.Is(err, ErrInvalidFileType):
		return KindInvalidFileType
	case errors.Is(err, ErrIncompleteSubmission):
		return KindIncompleteSubmission
	case errors.As(err, &rejErr):
		return KindServerRejection
	case errors.As(err, &netErr):
		return KindNetworkFailure
	case errors.Is(err, ErrUnknownRole),
		errors.Is(err, ErrUnknownStep),
		errors.Is(err, ErrStepSkipped),
		errors.Is(err, ErrStepLocked),
		errors.Is(err, ErrBusy),
		errors.Is(err, ErrInvalidParams):
		return KindInvalidRequest
	}
	return KindNetworkFailure
}
