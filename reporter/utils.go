package reporter

import (
	"github.com/sirupsen/logrus"
)

// MessageWithContext reports message if rep is set. Reporting failures are only logged.
func MessageWithContext(rep Reporter, message string, context Context) {
	if rep == nil {
		return
	}

	if err := rep.ReportMessageWithContext(message, context); err != nil {
		logrus.WithError(err).Error("Failed to report message")
	}
}

// ExceptionWithContext reports err if rep is set. Reporting failures are only logged.
func ExceptionWithContext(rep Reporter, err error, context Context) {
	if rep == nil {
		return
	}

	if repErr := rep.ReportExceptionWithContext(err, context); repErr != nil {
		logrus.WithError(repErr).Error("Failed to report exception")
	}
}
