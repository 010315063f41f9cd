package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var (
	ErrInvalidMessage     = errors.New("invalid message")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidPayload     = errors.New("invalid payload")
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// ErrorHandlerFunc is called with every error returned by a handler or produced
// while decoding a message. The read loop carries on afterwards.
type ErrorHandlerFunc func(ctx context.Context, conn *websocket.Conn, err error)

type WSRouter struct {
	routes       map[string]HandlerFunc[any]
	middlewares  []Middleware
	errorHandler ErrorHandlerFunc
}

func New() *WSRouter {
	return &WSRouter{
		routes:       make(map[string]HandlerFunc[any]),
		errorHandler: func(context.Context, *websocket.Conn, error) {},
	}
}

// Use appends middlewares to the chain. The first one added runs first.
func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

func (r *WSRouter) OnError(fn ErrorHandlerFunc) {
	r.errorHandler = fn
}

// Handle registers handler for messageType. The payload is decoded into T before
// the handler runs; middlewares see the raw payload.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = func(ctx context.Context, conn *websocket.Conn, payload any) error {
		var input T
		if raw, ok := payload.(json.RawMessage); ok && len(raw) > 0 {
			if err := json.Unmarshal(raw, &input); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
			}
		}

		return handler(ctx, conn, input)
	}
}

func (r *WSRouter) chain(h HandlerFunc[any]) HandlerFunc[any] {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}

	return h
}

func (r *WSRouter) dispatch(ctx context.Context, conn *websocket.Conn, data []byte) (context.Context, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		return ctx, ErrInvalidMessage
	}

	ctx = context.WithValue(ctx, messageTypeKey, msg.Type)

	handler, ok := r.routes[msg.Type]
	if !ok {
		return ctx, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}

	return ctx, r.chain(handler)(ctx, conn, msg.Payload)
}

// Dispatch routes a single raw message.
func (r *WSRouter) Dispatch(ctx context.Context, conn *websocket.Conn, data []byte) error {
	_, err := r.dispatch(ctx, conn, data)
	return err
}

// ServeConn reads messages from conn until reading fails and dispatches them one
// at a time. The error handler gets the context the message was handled with.
// The returned error is the read error.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if msgCtx, err := r.dispatch(ctx, conn, data); err != nil {
			r.errorHandler(msgCtx, conn, err)
		}
	}
}
