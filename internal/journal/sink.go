package journal

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// MultiSink fans each event out to the CSV log and the notifier. Both writes
// run concurrently and any failure is logged, never returned: journaling
// must not be able to abort a trading decision.
type MultiSink struct {
	csv      *CSVWriter
	notifier Notifier
	logger   *logrus.Logger
}

// Ensure MultiSink implements Sink
var _ Sink = (*MultiSink)(nil)

// NewMultiSink builds a sink over an optional CSV writer and notifier;
// either may be nil.
func NewMultiSink(csv *CSVWriter, notifier Notifier, logger *logrus.Logger) *MultiSink {
	return &MultiSink{csv: csv, notifier: notifier, logger: logger}
}

// Record implements Sink.
func (s *MultiSink) Record(event Event) {
	var g errgroup.Group

	if s.csv != nil {
		g.Go(func() error { return s.csv.Append(event) })
	}
	if s.notifier != nil {
		g.Go(func() error { return s.notifier.Send(FormatTradeAlert(event)) })
	}

	if err := g.Wait(); err != nil {
		s.logger.WithError(err).Warn("journal record failed")
	}
}

// Notify pushes a free-form message through the notifier, logging failures.
func (s *MultiSink) Notify(message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(message); err != nil {
		s.logger.WithError(err).Warn("notification failed")
	}
}
