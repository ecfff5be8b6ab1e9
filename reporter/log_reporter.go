package reporter

import (
	"github.com/sirupsen/logrus"
)

// LogReporter reports to a logrus entry. It suits deployments without an external reporting tool.
type LogReporter struct {
	Entry *logrus.Entry
}

func (r LogReporter) entry() *logrus.Entry {
	if r.Entry == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}

	return r.Entry
}

func (r LogReporter) ReportException(info any) error {
	r.entry().WithField("exception", info).Error("Reported exception")
	return nil
}

func (r LogReporter) ReportMessage(message string) error {
	r.entry().Warn(message)
	return nil
}

func (r LogReporter) ReportMessageWithContext(message string, context Context) error {
	r.entry().WithFields(logrus.Fields(context)).Warn(message)
	return nil
}

func (r LogReporter) ReportExceptionWithContext(info any, context Context) error {
	r.entry().WithFields(logrus.Fields(context)).WithField("exception", info).Error("Reported exception")
	return nil
}
