// Package logging holds the module's logrus conventions and goroutine profiling labels.
package logging

import (
	"context"
	"fmt"
	"runtime"
	"runtime/pprof"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Labels annotate goroutines for pprof.
type Labels map[string]any

// WithMailbox returns the base log entry for everything done on behalf of the maildir at dir.
func WithMailbox(dir string) *logrus.Entry {
	return logrus.WithField("pkg", "uidlist").WithField("mailbox", dir)
}

// SetLevel parses and applies a logrus level name.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logrus.SetLevel(lvl)

	return nil
}

func GoAnnotate(ctx context.Context, fn func(context.Context), labelMap ...Labels) {
	go pprof.Do(ctx, getLabels(labelMap...), fn)
}

func DoAnnotate(ctx context.Context, fn func(context.Context), labelMap ...Labels) {
	pprof.Do(ctx, getLabels(labelMap...), fn)
}

func getLabels(labelMap ...Labels) pprof.LabelSet {
	// The caller of GoAnnotate or DoAnnotate.
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		panic("failed to get caller's stack frame")
	}

	labels := []string{"fn", runtime.FuncForPC(pc).Name(), "file", file, "line", strconv.Itoa(line)}

	for _, labelMap := range labelMap {
		for key, val := range labelMap {
			labels = append(labels, key, fmt.Sprintf("%v", val))
		}
	}

	return pprof.Labels(labels...)
}
