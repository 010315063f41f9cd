package controller

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/metric"
	"github.com/sharetube/syncroom/internal/service/admission"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/ctxlogger"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

func (c controller) wsRequestIdWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", c.generateTimeBasedId()))
			return next(ctx, conn, payload)
		}
	}
}

func (c controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", wsrouter.GetMessageTypeFromCtx(ctx)))
			c.logger.InfoContext(ctx, "websocket message received", "payload", payload)

			start := time.Now()

			err := next(ctx, conn, payload)

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			c.logger.InfoContext(ctx, "websocket message handled",
				"processing_time_us", time.Since(start).Microseconds(),
				"alloc", memStats.Alloc/1024,
				"goroutines", runtime.NumGoroutine(),
			)

			return err
		}
	}
}

func (c controller) metricWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			err := next(ctx, conn, payload)

			outcome := metric.OutcomeHandled
			switch {
			case err == nil:
			case errors.Is(err, admission.ErrAdmissionDenied):
				outcome = metric.OutcomeLimited
			case errors.Is(err, room.ErrPermissionDenied):
				outcome = metric.OutcomeDenied
			default:
				outcome = metric.OutcomeFailed
			}
			metric.RecordWSMessage(wsrouter.GetMessageTypeFromCtx(ctx), outcome)

			return err
		}
	}
}

func (c controller) admissionWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			category := admission.CategoryControl
			if wsrouter.GetMessageTypeFromCtx(ctx) == joinRoomType {
				category = admission.CategoryJoin
			}

			if !c.admission.CheckAdmission(conn.RemoteAddr().String(), category) {
				return admission.ErrAdmissionDenied
			}

			return next(ctx, conn, payload)
		}
	}
}

// sessionWSMw tags the log context with the room and user of joined connections.
func (c controller) sessionWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			if session, err := c.roomService.GetSession(conn); err == nil {
				ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", session.RoomId))
				ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", session.UserId))
			}

			return next(ctx, conn, payload)
		}
	}
}
