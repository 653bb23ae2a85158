package logger

import (
	"context"
	"path"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// splitMethod는 "/pkg.Service/Method" 를 서비스와 메서드로 나눕니다.
func splitMethod(fullMethod string) (string, string) {
	service := path.Dir(fullMethod)
	if len(service) > 0 && service[0] == '/' {
		service = service[1:]
	}
	return service, path.Base(fullMethod)
}

// statusCodeOf는 에러에서 gRPC 상태 코드를 추출합니다.
func statusCodeOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}
	return codes.Unknown
}

// logGrpcResult는 상태 코드에 따라 로그 레벨을 결정합니다.
// 클라이언트/네트워크 성격의 실패는 Warn, 나머지 실패는 Error.
func logGrpcResult(logger *zap.Logger, msg string, code codes.Code, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("grpc.code", code.String()))
	switch code {
	case codes.OK:
		logger.Info(msg+" 완료", fields...)
	case codes.Canceled, codes.DeadlineExceeded, codes.ResourceExhausted,
		codes.Aborted, codes.Unavailable, codes.DataLoss:
		logger.Warn(msg+" 실패", append(fields, zap.Error(err))...)
	default:
		logger.Error(msg+" 오류", append(fields, zap.Error(err))...)
	}
}

// NewGrpcUnaryServerInterceptor는 단일 요청/응답 gRPC 메서드에 대한 로깅 인터셉터를 생성합니다.
func NewGrpcUnaryServerInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		startTime := time.Now()
		service, method := splitMethod(info.FullMethod)

		resp, err := handler(ctx, req)

		logGrpcResult(logger, "gRPC 요청", statusCodeOf(err), err,
			zap.String("grpc.service", service),
			zap.String("grpc.method", method),
			zap.Duration("grpc.duration", time.Since(startTime)),
		)
		return resp, err
	}
}

// NewGrpcStreamServerInterceptor는 스트리밍 gRPC 메서드(예: health Watch)에 대한 로깅 인터셉터를 생성합니다.
func NewGrpcStreamServerInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		startTime := time.Now()
		service, method := splitMethod(info.FullMethod)

		wrapped := &wrappedServerStream{ServerStream: ss}
		err := handler(srv, wrapped)

		logGrpcResult(logger, "gRPC 스트림", statusCodeOf(err), err,
			zap.String("grpc.service", service),
			zap.String("grpc.method", method),
			zap.Int("grpc.recv_count", wrapped.recvCount),
			zap.Int("grpc.send_count", wrapped.sendCount),
			zap.Duration("grpc.duration", time.Since(startTime)),
		)
		return err
	}
}

// wrappedServerStream은 ServerStream을 래핑하여 메시지 송수신 횟수를 추적합니다.
type wrappedServerStream struct {
	grpc.ServerStream
	recvCount int
	sendCount int
}

func (w *wrappedServerStream) RecvMsg(m interface{}) error {
	err := w.ServerStream.RecvMsg(m)
	if err == nil {
		w.recvCount++
	}
	return err
}

func (w *wrappedServerStream) SendMsg(m interface{}) error {
	err := w.ServerStream.SendMsg(m)
	if err == nil {
		w.sendCount++
	}
	return err
}

// GrpcServerOptions는 로깅 인터셉터가 설정된 서버 옵션을 반환합니다.
func GrpcServerOptions(logger *zap.Logger) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(NewGrpcUnaryServerInterceptor(logger)),
		grpc.ChainStreamInterceptor(NewGrpcStreamServerInterceptor(logger)),
	}
}
