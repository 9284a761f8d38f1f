package config

import "time"

const (
	// External payment window
	WindowPollInterval = 1 * time.Second
	WindowMaxOpen      = 30 * time.Minute

	// Invoice status polling, ~5 minutes total
	StatusPollInterval    = 5 * time.Second
	StatusPollMaxAttempts = 60

	// Telegram notification timeout
	NotifyTimeout = 10 * time.Second

	// Package catalog cache duration
	PackagesCacheDuration = 5 * time.Minute

	// Journal listing
	HistoryLimit = 20
)

// Progress messages reported to the caller, in flow order.
const (
	StatusCreatingPayment   = "Creating payment..."
	StatusOpeningWindow     = "Opening payment window..."
	StatusCheckingPayment   = "Checking payment status..."
	StatusProcessingPayment = "Processing payment..."
)

// User-facing fallback messages.
const (
	MsgCreateFailed   = "Failed to create payment"
	MsgStatusFailed   = "Failed to check payment status"
	MsgProcessFailed  = "Failed to process payment"
	MsgPackagesFailed = "Failed to load packages"
	MsgTimeout        = "Payment verification timed out. Please check your balance later."
	MsgCancelled      = "Purchase cancelled"
)
