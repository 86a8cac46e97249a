package tracing

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/sarchlab/demandpaging/hooking"
	"github.com/sarchlab/demandpaging/mem/vm"
)

// ParseLevel converts a level name (debug, info, warn, error) to a slog
// level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a text logger that writes records at or above level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler).With("module", "vm")
}

// A LogHook writes the events of a Manager as structured log records.
// Per-page events are logged at debug level, mapping and stack events at
// info, and process kills at warn.
type LogHook struct {
	logger *slog.Logger
}

// NewLogHook returns a LogHook writing to logger.
func NewLogHook(logger *slog.Logger) *LogHook {
	return &LogHook{logger: logger}
}

var hookLevels = map[*hooking.HookPos]slog.Level{
	vm.HookPosPageFault:       slog.LevelDebug,
	vm.HookPosPageClaimed:     slog.LevelDebug,
	vm.HookPosEvict:           slog.LevelDebug,
	vm.HookPosPageDestroyed:   slog.LevelDebug,
	vm.HookPosStackGrowth:     slog.LevelInfo,
	vm.HookPosMap:             slog.LevelInfo,
	vm.HookPosUnmap:           slog.LevelInfo,
	vm.HookPosFaultFailed:     slog.LevelWarn,
	vm.HookPosProcessKilled:   slog.LevelWarn,
	vm.HookPosWriteBackFailed: slog.LevelError,
}

// Func logs the event.
func (h *LogHook) Func(ctx hooking.HookCtx) {
	e, ok := ctx.Detail.(vm.Event)
	if !ok {
		return
	}

	level, ok := hookLevels[ctx.Pos]
	if !ok {
		level = slog.LevelDebug
	}

	if !h.logger.Enabled(context.Background(), level) {
		return
	}

	attrs := []slog.Attr{
		slog.Int("pid", int(e.PID)),
		slog.String("vaddr", hex(e.VAddr)),
	}

	if e.PAddr != 0 || ctx.Pos == vm.HookPosPageClaimed ||
		ctx.Pos == vm.HookPosEvict {
		attrs = append(attrs, slog.String("paddr", hex(e.PAddr)))
	}

	if _, isPage := ctx.Item.(*vm.Page); isPage {
		attrs = append(attrs, slog.String("type", e.Type.String()))
	}

	if region, isRegion := ctx.Item.(*vm.MappingRegion); isRegion {
		attrs = append(attrs,
			slog.String("mapping", region.ID),
			slog.Uint64("length", region.Length))
	}

	if e.Err != nil {
		attrs = append(attrs, slog.String("err", e.Err.Error()))
	}

	h.logger.LogAttrs(context.Background(), level, ctx.Pos.Name, attrs...)
}
