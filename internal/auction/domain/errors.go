package domain

import "errors"

// Bid rejection reasons, reported to the caller as definitive, not retryable.
var (
	ErrAuctionNotFound   = errors.New("auction not found")
	ErrAuctionNotActive  = errors.New("auction is not active")
	ErrAuctionEnded      = errors.New("auction already ended")
	ErrBidTooLow         = errors.New("bid amount is too low")
	ErrSelfBid           = errors.New("seller cannot bid on own auction")
	ErrInvalidAmount     = errors.New("amount must be a positive integer")
	ErrDuplicateBid      = errors.New("duplicate bid submission")
	ErrBuyNowUnavailable = errors.New("buy now is not available for this auction")
)

// State transition errors.
var (
	ErrNotClosing      = errors.New("auction is not in closing state")
	ErrNotCancellable  = errors.New("auction can no longer be cancelled")
	ErrNotScheduled    = errors.New("auction is not scheduled")
	ErrNotStartedYet   = errors.New("auction start time has not passed")
	ErrInvalidSchedule = errors.New("auction end time must be after start time")
)

// Retryable conditions. A caller seeing one of these must not assume the
// bid was rejected, only that it was not accepted.
var (
	ErrLockTimeout = errors.New("auction is busy, try again")
	ErrTransient   = errors.New("transient storage failure")
)

// IsRejection reports whether err is a definitive bid rejection that the
// caller should not retry as-is.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrAuctionNotFound,
		ErrAuctionNotActive,
		ErrAuctionEnded,
		ErrBidTooLow,
		ErrSelfBid,
		ErrInvalidAmount,
		ErrDuplicateBid,
		ErrBuyNowUnavailable,
		ErrNotCancellable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RejectionCode maps a rejection to the short code sent over the wire.
func RejectionCode(err error) string {
	switch {
	case errors.Is(err, ErrAuctionNotFound):
		return "auction_not_found"
	case errors.Is(err, ErrAuctionEnded):
		return "auction_ended"
	case errors.Is(err, ErrAuctionNotActive):
		return "auction_not_active"
	case errors.Is(err, ErrBidTooLow):
		return "bid_too_low"
	case errors.Is(err, ErrSelfBid):
		return "self_bid"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrDuplicateBid):
		return "duplicate_bid"
	case errors.Is(err, ErrBuyNowUnavailable):
		return "buy_now_unavailable"
	case errors.Is(err, ErrLockTimeout):
		return "try_again"
	default:
		return "internal_error"
	}
}
