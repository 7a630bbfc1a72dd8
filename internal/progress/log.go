package progress

import "go.uber.org/zap"

// Log writes one structured log line per event. Callers draining a run's
// event channel can tee events through here for operator visibility.
func Log(logger *zap.Logger, evt Event) {
	if logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("run_id", evt.RunID.String()),
		zap.String("stage", string(evt.Stage)),
		zap.Int("current_stage", evt.CurrentStage),
		zap.Int("total_stages", evt.TotalStages),
		zap.Float64("elapsed_seconds", evt.Performance.ElapsedSeconds),
	}
	switch evt.Status {
	case StatusError:
		fields = append(fields, zap.String("error_kind", evt.ErrorKind), zap.String("error", evt.Error))
		logger.Error(evt.Message, fields...)
	case StatusComplete:
		if evt.Article != nil {
			fields = append(fields,
				zap.String("title", evt.Article.Title),
				zap.String("method", string(evt.Article.ScrapedWith)),
				zap.Int("word_count", evt.Article.Metadata.WordCount),
			)
		}
		logger.Info(evt.Message, fields...)
	default:
		logger.Info(evt.Message, fields...)
	}
}
