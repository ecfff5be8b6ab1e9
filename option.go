package uidlist

import (
	"time"

	"github.com/ProtonMail/uidlist/async"
	"github.com/ProtonMail/uidlist/imap"
	"github.com/ProtonMail/uidlist/limits"
	"github.com/ProtonMail/uidlist/maildir"
	"github.com/ProtonMail/uidlist/observability"
	"github.com/ProtonMail/uidlist/reporter"
)

// Option represents a type that can be used to configure a mailbox.
type Option interface {
	config(*mailboxBuilder)
}

// WithStaleAfter sets how old another process's lock must be before it is taken over.
func WithStaleAfter(d time.Duration) Option {
	return &withStaleAfter{
		staleAfter: d,
	}
}

type withStaleAfter struct {
	staleAfter time.Duration
}

func (opt withStaleAfter) config(builder *mailboxBuilder) {
	builder.staleAfter = opt.staleAfter
}

// WithConfirmScans sets how many consecutive sync passes must miss a file before its UID is retired.
func WithConfirmScans(n int) Option {
	return &withConfirmScans{
		n: n,
	}
}

type withConfirmScans struct {
	n int
}

func (opt withConfirmScans) config(builder *mailboxBuilder) {
	builder.confirmScans = opt.n
}

// WithScanner replaces the directory scan of new/ and cur/.
func WithScanner(scanner maildir.Scanner) Option {
	return &withScanner{
		scanner: scanner,
	}
}

type withScanner struct {
	scanner maildir.Scanner
}

func (opt withScanner) config(builder *mailboxBuilder) {
	builder.scanner = opt.scanner
}

// WithLimits bounds the UIDs and messages of the mailbox.
func WithLimits(limits limits.Mailbox) Option {
	return &withLimits{
		limits: limits,
	}
}

type withLimits struct {
	limits limits.Mailbox
}

func (opt withLimits) config(builder *mailboxBuilder) {
	builder.limits = &opt.limits
}

// WithReporter sets the reporter notified of corrupt or inconsistent lists.
func WithReporter(reporter reporter.Reporter) Option {
	return &withReporter{
		reporter: reporter,
	}
}

type withReporter struct {
	reporter reporter.Reporter
}

func (opt withReporter) config(builder *mailboxBuilder) {
	builder.reporter = opt.reporter
}

// WithObservabilitySender sets where failure metrics are sent.
func WithObservabilitySender(sender observability.Sender, listErrorType, lockErrorType int) Option {
	return &withObservabilitySender{
		sender:        sender,
		listErrorType: listErrorType,
		lockErrorType: lockErrorType,
	}
}

type withObservabilitySender struct {
	sender        observability.Sender
	listErrorType int
	lockErrorType int
}

func (opt withObservabilitySender) config(builder *mailboxBuilder) {
	builder.sender = opt.sender

	observability.SetupMetricTypes(opt.listErrorType, opt.lockErrorType)
}

// WithCreate creates the maildir if it does not exist.
func WithCreate() Option {
	return &withCreate{}
}

type withCreate struct{}

func (withCreate) config(builder *mailboxBuilder) {
	builder.create = true
}

// WithAutoSync syncs in the background whenever the maildir changes,
// at most once per minInterval.
func WithAutoSync(minInterval time.Duration) Option {
	return &withAutoSync{
		minInterval: minInterval,
	}
}

type withAutoSync struct {
	minInterval time.Duration
}

func (opt withAutoSync) config(builder *mailboxBuilder) {
	builder.autoSync = opt.minInterval
}

// WithUIDValidityGenerator sets how new or rebuilt lists pick their UIDVALIDITY.
func WithUIDValidityGenerator(generator imap.UIDValidityGenerator) Option {
	return &withUIDValidityGenerator{
		generator: generator,
	}
}

type withUIDValidityGenerator struct {
	generator imap.UIDValidityGenerator
}

func (opt withUIDValidityGenerator) config(builder *mailboxBuilder) {
	builder.uidValidityGenerator = opt.generator
}

// WithPanicHandler sets the panic handler of background goroutines.
func WithPanicHandler(panicHandler async.PanicHandler) Option {
	return &withPanicHandler{
		panicHandler: panicHandler,
	}
}

type withPanicHandler struct {
	panicHandler async.PanicHandler
}

func (opt withPanicHandler) config(builder *mailboxBuilder) {
	builder.panicHandler = opt.panicHandler
}

// SyncOption configures a single sync pass.
type SyncOption interface {
	configSync(*syncConfig)
}

type syncConfig struct {
	forceRemove []string
}

// WithForceRemove retires the entries of the given files as soon as the pass misses them,
// without waiting for confirming scans. Names may be full filenames or maildir keys.
func WithForceRemove(names ...string) SyncOption {
	return &withForceRemove{
		names: names,
	}
}

type withForceRemove struct {
	names []string
}

func (opt withForceRemove) configSync(cfg *syncConfig) {
	cfg.forceRemove = append(cfg.forceRemove, opt.names...)
}
