package reporter

//go:generate mockgen -destination mock_reporter/reporter.go . Reporter

type Context = map[string]any

// Reporter represents an external reporting tool which can be hooked into a mailbox to report
// unexpected states of its uid list.
type Reporter interface {
	ReportException(any) error
	ReportMessage(string) error
	ReportMessageWithContext(string, Context) error
	ReportExceptionWithContext(any, Context) error
}
