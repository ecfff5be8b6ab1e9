// Package async holds the panic policy for goroutines started by this module.
package async

import (
	"fmt"

	"github.com/ProtonMail/uidlist/reporter"
	"github.com/sirupsen/logrus"
)

type PanicHandler interface {
	HandlePanic(r any)
}

// NoopPanicHandler lets the panic continue.
type NoopPanicHandler struct{}

func (NoopPanicHandler) HandlePanic(r any) {
	panic(r)
}

// HandlePanic must be deferred directly. A nil handler leaves the panic alone.
func HandlePanic(panicHandler PanicHandler) {
	if panicHandler == nil {
		return
	}

	if r := recover(); r != nil {
		panicHandler.HandlePanic(r)
	}
}

// ReportingPanicHandler logs and reports the panic, then lets the goroutine end quietly.
type ReportingPanicHandler struct {
	Reporter reporter.Reporter
}

func (h ReportingPanicHandler) HandlePanic(r any) {
	logrus.WithField("panic", fmt.Sprint(r)).Error("Recovered from panic")

	if h.Reporter == nil {
		return
	}

	if err := h.Reporter.ReportException(r); err != nil {
		logrus.WithError(err).Error("Failed to report panic")
	}
}
