package present

import (
	"github.com/matheus3301/leadsync/internal/convstore"
	"go.uber.org/zap"
)

// LogSurface reports list changes to a logger. Used when the console runs
// without a terminal UI.
type LogSurface struct {
	logger *zap.Logger
}

// NewLogSurface creates a surface that logs at info level for structural
// changes and debug level for decorations.
func NewLogSurface(logger *zap.Logger) *LogSurface {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSurface{logger: logger.Named("list")}
}

func (s *LogSurface) Render(rows []convstore.Summary) {
	unread := 0
	for _, r := range rows {
		if r.UnreadCount > 0 {
			unread++
		}
	}
	s.logger.Info("conversation list rendered", zap.Int("rows", len(rows)), zap.Int("unread_rows", unread))
}

func (s *LogSurface) UpsertRow(row convstore.Summary) {
	s.logger.Info("conversation updated",
		zap.String("id", row.ID),
		zap.String("name", row.DisplayName),
		zap.String("preview", row.LastMessagePreview),
		zap.Int("unread", row.UnreadCount),
	)
}

func (s *LogSurface) SetOffsets(offsets map[string]int) {
	s.logger.Debug("move started", zap.Any("offsets", offsets))
}

func (s *LogSurface) ClearOffsets() {}

func (s *LogSurface) Reorder(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.logger.Info("conversation moved to top", zap.String("id", ids[0]))
}

func (s *LogSurface) SetBadge(id, name string, phase BadgePhase) {
	s.logger.Debug("badge", zap.String("id", id), zap.String("badge", name), zap.Stringer("phase", phase))
}

func (s *LogSurface) SetUnread(id string, n int, pulse bool) {
	if pulse {
		s.logger.Info("unread", zap.String("id", id), zap.Int("count", n))
	}
}

func (s *LogSurface) SetHighlight(string, bool) {}
