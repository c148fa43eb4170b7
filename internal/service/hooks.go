package service

import (
	"context"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
)

// Recorder receives attribution outcomes for metrics.
type Recorder interface {
	ObserveClick(outcome string)
	ObserveConversion(result string)
	ObserveSignup(result string)
}

// Notifier delivers operator alerts.
type Notifier interface {
	NotifyBotAction(bot *model.Bot, action model.BotAction) error
	NotifyStorageFailure(operation string, err error) error
}

// ReportInvalidator drops cached reports that cover a link after new
// events land on it.
type ReportInvalidator interface {
	InvalidateLinkReports(ctx context.Context, link *model.ReferralLink)
}

type nopRecorder struct{}

func (nopRecorder) ObserveClick(string)      {}
func (nopRecorder) ObserveConversion(string) {}
func (nopRecorder) ObserveSignup(string)     {}

type nopNotifier struct{}

func (nopNotifier) NotifyBotAction(*model.Bot, model.BotAction) error { return nil }
func (nopNotifier) NotifyStorageFailure(string, error) error          { return nil }

type nopInvalidator struct{}

func (nopInvalidator) InvalidateLinkReports(context.Context, *model.ReferralLink) {}
