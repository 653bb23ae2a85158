package errors

import (
	"github.com/labstack/echo/v4"
)

// ToHTTPStatus는 에러 코드를 HTTP 상태 코드로 변환합니다
func ToHTTPStatus(code string) int {
	httpStatus, _ := GetCodeMapping(code)
	return httpStatus
}

// ToHTTPError는 에러를 Echo HTTP 에러로 변환합니다.
// 내부 스택이나 원인 체인은 응답에 포함하지 않고 최상위 메시지만 노출합니다.
func ToHTTPError(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}

	if echoErr, ok := err.(*echo.HTTPError); ok {
		return echoErr
	}

	status := ToHTTPStatus(CodeOf(err))

	var appErr *AppError
	if As(err, &appErr) {
		return echo.NewHTTPError(status, appErr.Error())
	}

	return echo.NewHTTPError(status, err.Error())
}
