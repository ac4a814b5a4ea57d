// Package notify sends the summary of a finished run to chat services.
package notify

import (
	"context"
	"errors"
	"fmt"
	"text/template"

	"github.com/ethereum/go-ethereum/log"
	"github.com/nicholas-fedor/shoutrrr"
	shoutrrrtypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/dfe-analytical-services/robot-rerun/metrics"
	"github.com/dfe-analytical-services/robot-rerun/types"
)

// Sink delivers a run summary somewhere
type Sink interface {
	Notify(ctx context.Context, summary types.ReportSummary) error
}

// SendFunc delivers a rendered message to a service URL
type SendFunc func(url, message string) error

// ShoutrrrSink renders a summary with a template and sends it to every
// configured service URL (slack://, teams://, generic+https:// ...).
type ShoutrrrSink struct {
	urls     []string
	template *template.Template
	send     SendFunc
}

// SinkOption configures a ShoutrrrSink
type SinkOption func(*ShoutrrrSink)

// WithSendFunc replaces the shoutrrr sender
func WithSendFunc(send SendFunc) SinkOption {
	return func(s *ShoutrrrSink) { s.send = send }
}

// NewShoutrrrSink creates a sink for urls. An empty tmpl uses DefaultTemplate.
func NewShoutrrrSink(urls []string, tmpl string, opts ...SinkOption) (*ShoutrrrSink, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one notification url is required")
	}
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	t, err := Parse(tmpl)
	if err != nil {
		return nil, err
	}
	s := &ShoutrrrSink{urls: urls, template: t, send: send}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Notify sends the rendered summary to every url. All urls are tried; the
// returned error joins the failures.
func (s *ShoutrrrSink) Notify(ctx context.Context, summary types.ReportSummary) error {
	msg, err := Render(s.template, summary)
	if err != nil {
		return err
	}
	var errs []error
	for i, url := range s.urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.send(url, msg); err != nil {
			errs = append(errs, fmt.Errorf("service %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

func send(url, message string) error {
	sender, err := shoutrrr.CreateSender(url)
	if err != nil {
		return fmt.Errorf("creating sender: %w", err)
	}
	params := shoutrrrtypes.Params{}
	for _, e := range sender.Send(message, &params) {
		if e != nil {
			return fmt.Errorf("sending: %w", e)
		}
	}
	return nil
}

// Notifier fans a summary out to sinks. Failures are logged and counted but
// never returned; a run's outcome does not depend on its notifications.
type Notifier struct {
	log   log.Logger
	sinks []Sink
}

// NewNotifier creates a Notifier. It does nothing without sinks.
func NewNotifier(logger log.Logger, sinks ...Sink) *Notifier {
	return &Notifier{log: logger.New("component", "notifier"), sinks: sinks}
}

// Notify delivers summary to every sink
func (n *Notifier) Notify(ctx context.Context, summary types.ReportSummary) {
	for _, sink := range n.sinks {
		err := sink.Notify(ctx, summary)
		metrics.RecordNotification(err)
		if err != nil {
			n.log.Warn("Failed to send notification", "runId", summary.RunID, "error", err)
			continue
		}
		n.log.Debug("Sent notification", "runId", summary.RunID)
	}
}
