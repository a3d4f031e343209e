package observability

import (
	"time"

	"go.uber.org/zap"
)

// Status values attached to outcome records.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Success logs msg at info level marked with status=success.
func Success(logger *zap.Logger, msg string, fields ...zap.Field) {
	logger.Info(msg, append(fields, zap.String("status", StatusSuccess))...)
}

// Timed runs fn and logs its start, elapsed time and outcome under name. The
// error from fn is returned unchanged.
func Timed(logger *zap.Logger, name string, fn func() error) error {
	_, err := TimedValue(logger, name, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// TimedValue is Timed for functions that produce a value.
func TimedValue[T any](logger *zap.Logger, name string, fn func() (T, error)) (T, error) {
	logger.Info("start", zap.String("operation", name))
	start := time.Now()

	v, err := fn()

	elapsed := zap.Float64("elapsed_ms", float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		logger.Error("failed", zap.String("operation", name), elapsed,
			zap.String("status", StatusFailure), zap.Error(err))
		return v, err
	}
	Success(logger, "finished", zap.String("operation", name), elapsed)
	return v, nil
}
