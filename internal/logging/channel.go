package logging

import (
	"context"
	"log/slog"
	"sort"
)

// channel is a named Logger writing through a slog handler
type channel struct {
	name    string
	handler slog.Handler
	level   LogLevel
	context map[string]interface{}
}

func (c *channel) Debug(message string, context ...map[string]interface{}) {
	c.Log(DebugLevel, message, context...)
}

func (c *channel) Info(message string, context ...map[string]interface{}) {
	c.Log(InfoLevel, message, context...)
}

func (c *channel) Warn(message string, context ...map[string]interface{}) {
	c.Log(WarnLevel, message, context...)
}

func (c *channel) Error(message string, context ...map[string]interface{}) {
	c.Log(ErrorLevel, message, context...)
}

func (c *channel) Log(level LogLevel, message string, contextMaps ...map[string]interface{}) {
	c.LogContext(context.Background(), level, message, contextMaps...)
}

func (c *channel) LogContext(ctx context.Context, level LogLevel, message string, contextMaps ...map[string]interface{}) {
	if level < c.level {
		return
	}

	merged := c.mergeContext(contextMaps...)
	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		merged["request_id"] = requestID
	}

	logger := slog.New(c.handler)
	logger.LogAttrs(ctx, toSlogLevel(level), message, attrs(c.name, merged)...)
}

func (c *channel) WithContext(context map[string]interface{}) Logger {
	return &channel{
		name:    c.name,
		handler: c.handler,
		level:   c.level,
		context: c.mergeContext(context),
	}
}

func (c *channel) WithChannel(name string) Logger {
	return &channel{
		name:    name,
		handler: c.handler,
		level:   c.level,
		context: c.context,
	}
}

func (c *channel) mergeContext(contexts ...map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(c.context))
	for k, v := range c.context {
		merged[k] = v
	}
	for _, ctx := range contexts {
		for k, v := range ctx {
			merged[k] = v
		}
	}
	return merged
}

// attrs turns context into sorted attributes so output is stable
func attrs(channelName string, context map[string]interface{}) []slog.Attr {
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]slog.Attr, 0, len(keys)+1)
	out = append(out, slog.String("channel", channelName))
	for _, k := range keys {
		out = append(out, slog.Any(k, context[k]))
	}
	return out
}

// nullLogger discards everything
type nullLogger struct{}

// NewNullLogger returns a Logger that discards all entries
func NewNullLogger() Logger { return nullLogger{} }

func (nullLogger) Debug(string, ...map[string]interface{}) {}

func (nullLogger) Info(string, ...map[string]interface{}) {}

func (nullLogger) Warn(string, ...map[string]interface{}) {}

func (nullLogger) Error(string, ...map[string]interface{}) {}

func (nullLogger) Log(LogLevel, string, ...map[string]interface{}) {}

func (n nullLogger) WithContext(map[string]interface{}) Logger { return n }

func (n nullLogger) WithChannel(string) Logger { return n }

func (nullLogger) LogContext(context.Context, LogLevel, string, ...map[string]interface{}) {}
