package contextkeys

import "context"

type contextKey string

const (
	messageTypeKey  contextKey = "message_type"
	callbackDataKey contextKey = "callback_data"
)

type MessageType string

const (
	MessageTypeCommand     MessageType = "command"
	MessageTypeText        MessageType = "text"
	MessageTypeClickButton MessageType = "click_button"
	MessageTypeUnknown     MessageType = "unknown"
)

func WithMessageType(ctx context.Context, t MessageType) context.Context {
	return context.WithValue(ctx, messageTypeKey, t)
}

func GetMessageType(ctx context.Context) (MessageType, bool) {
	t, ok := ctx.Value(messageTypeKey).(MessageType)
	return t, ok
}

func WithCallbackData(ctx context.Context, data string) context.Context {
	return context.WithValue(ctx, callbackDataKey, data)
}

func GetCallbackData(ctx context.Context) (string, bool) {
	d, ok := ctx.Value(callbackDataKey).(string)
	return d, ok
}
