package engine

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// merge concatenates the part files in index order into the output file
func (e *Engine) merge(run *Run, parts []string, expected int64, logger *zap.Logger) error {
	out, err := os.OpenFile(run.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	run.markOutputTouched()

	buf := make([]byte, e.opts.CopyBufferSize)
	var total int64
	for i, part := range parts {
		if run.signalled() {
			out.Close()
			return run.ctx.Err()
		}
		n, err := appendPart(out, part, buf)
		if err != nil {
			out.Close()
			return fmt.Errorf("failed to merge part %d: %w", i, err)
		}
		total += n
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("failed to sync output file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}

	if expected > 0 && total != expected {
		logger.Warn("Merged size differs from expected",
			zap.Int64("expected", expected),
			zap.Int64("merged", total))
	}
	logger.Debug("Merged segments", zap.Int("parts", len(parts)), zap.Int64("bytes", total))
	return nil
}

func appendPart(dst io.Writer, path string, buf []byte) (int64, error) {
	in, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	return io.CopyBuffer(dst, in, buf)
}
