package logger

import (
	"context"
	"time"
)

// Field keys shared by every component so log lines can be joined on them.
const (
	KeyRequestID = "request_id"
	KeyClient    = "client"
	KeyProcedure = "procedure"
	KeyWorkspace = "workspace"
	KeyMountID   = "mount_id"
	KeyError     = "error"
	KeyDuration  = "duration_ms"
)

type contextKey struct{}

// LogContext carries per-request fields that *Ctx functions prepend to
// every record.
type LogContext struct {
	RequestID string
	Client    string
	Procedure string
	Workspace string
	StartTime time.Time
}

func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, contextKey{}, lc)
}

func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(contextKey{}).(*LogContext)
	return lc
}

func NewLogContext(client string) *LogContext {
	return &LogContext{Client: client, StartTime: time.Now()}
}

func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

func (lc *LogContext) WithProcedure(procedure string) *LogContext {
	c := lc.Clone()
	c.Procedure = procedure
	return c
}

func (lc *LogContext) WithWorkspace(workspace string) *LogContext {
	c := lc.Clone()
	c.Workspace = workspace
	return c
}

// DurationMs reports the time elapsed since the context was created.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000
}

func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	fields := make([]any, 0, 8+len(args))
	if lc.RequestID != "" {
		fields = append(fields, KeyRequestID, lc.RequestID)
	}
	if lc.Client != "" {
		fields = append(fields, KeyClient, lc.Client)
	}
	if lc.Procedure != "" {
		fields = append(fields, KeyProcedure, lc.Procedure)
	}
	if lc.Workspace != "" {
		fields = append(fields, KeyWorkspace, lc.Workspace)
	}
	return append(fields, args...)
}
