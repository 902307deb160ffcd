// Package services defines the business logic for reply claiming, purchase
// attribution, follow-up scheduling, outbound delivery, and analytics.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer. Note that "already claimed" is deliberately NOT an
// error: the claim ledger surfaces only claimed / not-claimed to callers.
package services

import "errors"

var (
	// ErrShopNotFound indicates that the requested shop does not exist.
	ErrShopNotFound = errors.New("shop not found")

	// ErrShopInactive is returned when an operation targets an
	// uninstalled (inactive) shop.
	ErrShopInactive = errors.New("shop inactive")

	// ErrLinkNotFound indicates that no ledger row carries the requested
	// link id.
	ErrLinkNotFound = errors.New("link not found")

	// ErrEmptyReply is returned when a claim is attempted with empty
	// reply text.
	ErrEmptyReply = errors.New("reply text is empty")

	// ErrInvalidChannel is returned when a channel value is outside the
	// allowed set (dm, comment).
	ErrInvalidChannel = errors.New("channel must be dm or comment")

	// ErrInvalidStatus is returned when a queue status filter is outside
	// the allowed set.
	ErrInvalidStatus = errors.New("status must be one of pending, processing, sent, failed")

	// ErrInvalidTone is returned when a settings update carries an
	// unknown follow-up tone.
	ErrInvalidTone = errors.New("tone must be one of friendly, expert, casual")
)
