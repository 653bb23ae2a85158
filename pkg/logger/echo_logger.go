// File: pkg/logger/echo_logger.go
package logger

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	apperrors "github.com/Traderpoint/CloudVPS-2-sub003/pkg/errors"
)

// 로그에 원문을 남기지 않고 마스킹할 헤더
var maskedHeaders = map[string]bool{
	"Authorization":      true,
	"Stripe-Signature":   true,
	"Openpayu-Signature": true,
}

// maskValue는 앞 10자와 뒤 5자만 남깁니다.
func maskValue(val string) string {
	if len(val) > 15 {
		return val[:10] + "..." + val[len(val)-5:]
	}
	return "[MASKED]"
}

// NewEchoRequestLogger는 Echo 서버를 위한 Request Logger를 생성합니다.
// 결제 콜백의 상관관계 파라미터(refId, transId 등)를 함께 기록합니다.
func NewEchoRequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	config := middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health" || c.Request().URL.Path == "/metrics"
		},
		BeforeNextFunc: func(c echo.Context) {
			c.Set("request-start-time", time.Now())
		},
		HandleError: true,

		LogLatency:       true,
		LogProtocol:      true,
		LogRemoteIP:      true,
		LogHost:          true,
		LogMethod:        true,
		LogURI:           true,
		LogURIPath:       true,
		LogRoutePath:     true,
		LogRequestID:     true,
		LogReferer:       true,
		LogUserAgent:     true,
		LogStatus:        true,
		LogError:         true,
		LogContentLength: true,
		LogResponseSize:  true,

		LogHeaders:     []string{"Content-Type", "Authorization", "Stripe-Signature", "OpenPayu-Signature"},
		LogQueryParams: []string{"id", "refId", "transId", "invoiceId", "status"},

		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			startTime, _ := c.Get("request-start-time").(time.Time)

			fields := []zap.Field{
				zap.String("request.remote_ip", v.RemoteIP),
				zap.String("request.host", v.Host),
				zap.String("request.protocol", v.Protocol),
				zap.String("request.method", v.Method),
				zap.String("request.uri", v.URI),
				zap.String("request.path", v.URIPath),
				zap.String("request.route", v.RoutePath),
				zap.String("request.user_agent", v.UserAgent),
				zap.String("request.referer", v.Referer),
				zap.Int("response.status", v.Status),
				zap.Duration("response.latency", v.Latency),
				zap.Duration("response.elapsed_since_before_next", time.Since(startTime)),
				zap.String("request.request_id", v.RequestID),
				zap.Int64("response.response_size", v.ResponseSize),
				zap.String("request.content_length", v.ContentLength),
			}

			if len(v.Headers) > 0 {
				headers := make(map[string]string)
				for k, values := range v.Headers {
					if len(values) == 0 {
						continue
					}
					if maskedHeaders[http.CanonicalHeaderKey(k)] {
						headers[k] = maskValue(values[0])
					} else {
						headers[k] = values[0]
					}
				}
				fields = append(fields, zap.Any("request.headers", headers))
			}

			if len(v.QueryParams) > 0 {
				fields = append(fields, zap.Any("request.query_params", v.QueryParams))
			}

			switch {
			case v.Error != nil:
				logger.Error("Request failed", append(fields, zap.Error(v.Error))...)
			case v.Status >= 500:
				logger.Error("Server error", fields...)
			case v.Status >= 400:
				logger.Warn("Client error", fields...)
			default:
				logger.Info("Request completed", fields...)
			}
			return nil
		},
	}

	return middleware.RequestLoggerWithConfig(config)
}

// WithEchoLogger Echo에 zap 로거와 공통 에러 핸들러를 설정합니다.
// 응답 본문에는 최상위 메시지만 담고, 원인 체인은 서버 로그에만 남깁니다.
func WithEchoLogger(e *echo.Echo, logger *zap.Logger) {
	e.Logger = NewEchoZapLogger(logger)

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		he := apperrors.ToHTTPError(err)
		code := he.Code

		fields := []zap.Field{
			zap.Int("status", code),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.String("ip", c.RealIP()),
		}
		if code >= 500 {
			apperrors.LogError(logger, err, "HTTP error", fields...)
		} else {
			logger.Warn("HTTP error", append(fields, zap.Error(err))...)
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			message := http.StatusText(code)
			if m, ok := he.Message.(string); ok && code != http.StatusInternalServerError {
				message = m
			}
			err = c.JSON(code, map[string]interface{}{
				"success": false,
				"error":   message,
			})
		}
		if err != nil {
			logger.Error("Failed to send error response", zap.Error(err))
		}
	}
}

// EchoZapLogger는 echo.Logger 를 zap 위에 구현합니다.
// 레벨별 메서드(Debug, Infof, Error 등)는 임베드된 SugaredLogger 가 제공합니다.
type EchoZapLogger struct {
	*zap.SugaredLogger
	base *zap.Logger
}

var _ echo.Logger = (*EchoZapLogger)(nil)

// NewEchoZapLogger는 Echo의 Logger 인터페이스를 구현한 zap 로거 래퍼를 생성합니다.
func NewEchoZapLogger(logger *zap.Logger) *EchoZapLogger {
	base := logger.WithOptions(zap.AddCallerSkip(1))
	return &EchoZapLogger{SugaredLogger: base.Sugar(), base: base}
}

// Output은 Echo 내부 출력(배너 등)을 INFO 로그로 보냅니다.
func (l *EchoZapLogger) Output() io.Writer {
	return zapWriter{logger: l.base}
}

// Level은 zap 코어에서 활성화된 가장 낮은 레벨을 Echo 레벨로 반환합니다.
func (l *EchoZapLogger) Level() log.Lvl {
	core := l.base.Core()
	switch {
	case core.Enabled(zapcore.DebugLevel):
		return log.DEBUG
	case core.Enabled(zapcore.InfoLevel):
		return log.INFO
	case core.Enabled(zapcore.WarnLevel):
		return log.WARN
	default:
		return log.ERROR
	}
}

// 출력 대상, 레벨, 헤더, 프리픽스는 zap 설정이 결정하므로 무시합니다.
func (l *EchoZapLogger) SetOutput(io.Writer) {}
func (l *EchoZapLogger) SetLevel(log.Lvl)    {}
func (l *EchoZapLogger) SetHeader(string)    {}
func (l *EchoZapLogger) SetPrefix(string)    {}
func (l *EchoZapLogger) Prefix() string      { return "" }

func (l *EchoZapLogger) Print(i ...interface{}) {
	l.SugaredLogger.Info(i...)
}

func (l *EchoZapLogger) Printf(format string, i ...interface{}) {
	l.SugaredLogger.Infof(format, i...)
}

func (l *EchoZapLogger) Printj(j log.JSON) { l.logJSON(zapcore.InfoLevel, j) }
func (l *EchoZapLogger) Debugj(j log.JSON) { l.logJSON(zapcore.DebugLevel, j) }
func (l *EchoZapLogger) Infoj(j log.JSON)  { l.logJSON(zapcore.InfoLevel, j) }
func (l *EchoZapLogger) Warnj(j log.JSON)  { l.logJSON(zapcore.WarnLevel, j) }
func (l *EchoZapLogger) Errorj(j log.JSON) { l.logJSON(zapcore.ErrorLevel, j) }
func (l *EchoZapLogger) Fatalj(j log.JSON) { l.logJSON(zapcore.FatalLevel, j) }
func (l *EchoZapLogger) Panicj(j log.JSON) { l.logJSON(zapcore.PanicLevel, j) }

// logJSON 은 Echo 의 JSON 로그를 구조화 필드로 기록합니다. Fatal/Panic 레벨은 zap 이 종료/패닉 처리합니다.
func (l *EchoZapLogger) logJSON(level zapcore.Level, j log.JSON) {
	if ce := l.base.Check(level, "echo"); ce != nil {
		fields := make([]zap.Field, 0, len(j))
		for k, v := range j {
			fields = append(fields, zap.Any(k, v))
		}
		ce.Write(fields...)
	}
}

// zapWriter는 io.Writer 를 zap INFO 로그로 연결합니다.
type zapWriter struct {
	logger *zap.Logger
}

func (w zapWriter) Write(p []byte) (int, error) {
	w.logger.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
