package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime"
	"time"

	"github.com/sharetube/syncroom/pkg/ctxlogger"
	"github.com/sharetube/syncroom/pkg/wsconn"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

func (c controller) wsRequestIdWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[json.RawMessage]) wsrouter.HandlerFunc[json.RawMessage] {
		return func(ctx context.Context, conn *wsconn.Conn, payload json.RawMessage) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", c.generateTimeBasedId()))
			return next(ctx, conn, payload)
		}
	}
}

func (c controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[json.RawMessage]) wsrouter.HandlerFunc[json.RawMessage] {
		return func(ctx context.Context, conn *wsconn.Conn, payload json.RawMessage) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", wsrouter.GetMessageTypeFromCtx(ctx)))
			c.logger.InfoContext(ctx, "websocket message received", "payload", string(payload))

			start := time.Now()

			err := next(ctx, conn, payload)

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			c.logger.InfoContext(ctx, "websocket message handled",
				"processing_time_us", time.Since(start).Microseconds(),
				"alloc", memStats.Alloc/1024,
				"total_alloc", memStats.TotalAlloc/1024,
				"sys", memStats.Sys/1024,
				"goroutines", runtime.NumGoroutine(),
			)

			return err
		}
	}
}

func (c controller) metricsWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[json.RawMessage]) wsrouter.HandlerFunc[json.RawMessage] {
		return func(ctx context.Context, conn *wsconn.Conn, payload json.RawMessage) error {
			messageType := wsrouter.GetMessageTypeFromCtx(ctx)
			start := time.Now()

			err := next(ctx, conn, payload)

			status := "ok"
			if err != nil {
				status = errorCode(err)
			}
			c.metrics.Messages.WithLabelValues(messageType, status).Inc()
			c.metrics.MessageDuration.WithLabelValues(messageType).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// membershipWSMw puts the room and member the connection is bound to into the context.
func (c controller) membershipWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[json.RawMessage]) wsrouter.HandlerFunc[json.RawMessage] {
		return func(ctx context.Context, conn *wsconn.Conn, payload json.RawMessage) error {
			if b, err := c.roomService.GetMembership(conn); err == nil {
				ctx = context.WithValue(ctx, roomIdCtxKey, b.RoomId)
				ctx = context.WithValue(ctx, memberIdCtxKey, b.MemberId)
				ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", b.RoomId))
				ctx = ctxlogger.AppendCtx(ctx, slog.String("member_id", b.MemberId))
			}

			return next(ctx, conn, payload)
		}
	}
}
