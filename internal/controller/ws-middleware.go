package controller

import (
	"context"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/storyscout/server/pkg/ctxlogger"
	"github.com/storyscout/server/pkg/wsrouter"
)

func (c controller) wsLoggingMw(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
	return func(ctx context.Context, conn *websocket.Conn, payload any) error {
		ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", c.generateTimeBasedId()))
		c.logger.InfoContext(ctx, "ws message", "type", wsrouter.GetMessageTypeFromCtx(ctx))
		return next(ctx, conn, payload)
	}
}
