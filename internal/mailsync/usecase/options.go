package usecase

import (
	emaildomain "mailmirror-backend/internal/email/domain"
	"mailmirror-backend/pkg/config"
)

type Options struct {
	InboxLimit int64
	SpamLimit  int64
	DraftLimit int64
	SentLimit  int64

	LabelScope string

	FetchConcurrency int
	UserConcurrency  int

	Retry RetryPolicy
}

func DefaultOptions() Options {
	return Options{
		InboxLimit:       50,
		SpamLimit:        20,
		DraftLimit:       20,
		SentLimit:        100,
		LabelScope:       emaildomain.LabelScopeGlobal,
		FetchConcurrency: 4,
		UserConcurrency:  1,
		Retry:            DefaultRetryPolicy(),
	}
}

func OptionsFromConfig(cfg config.SyncConfig) Options {
	opts := Options{
		InboxLimit:       cfg.InboxLimit,
		SpamLimit:        cfg.SpamLimit,
		DraftLimit:       cfg.DraftLimit,
		SentLimit:        cfg.SentLimit,
		LabelScope:       cfg.LabelScope,
		FetchConcurrency: cfg.FetchConcurrency,
		UserConcurrency:  cfg.UserConcurrency,
		Retry: RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			MinDelay:    cfg.RetryMinDelay,
			MaxDelay:    cfg.RetryMaxDelay,
			Factor:      2,
			CallTimeout: cfg.CallTimeout,
		},
	}
	return opts.normalize()
}

func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.InboxLimit <= 0 {
		o.InboxLimit = def.InboxLimit
	}
	if o.SpamLimit <= 0 {
		o.SpamLimit = def.SpamLimit
	}
	if o.DraftLimit <= 0 {
		o.DraftLimit = def.DraftLimit
	}
	if o.SentLimit <= 0 {
		o.SentLimit = def.SentLimit
	}
	if o.LabelScope == "" {
		o.LabelScope = def.LabelScope
	}
	if o.FetchConcurrency <= 0 {
		o.FetchConcurrency = 1
	}
	if o.UserConcurrency <= 0 {
		o.UserConcurrency = 1
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry.MaxAttempts = 1
	}
	return o
}
