// Package konnector runs one synchronization: log in, fetch and parse the
// bills, save them, then link each one to its bank operation.
package konnector

import (
	"context"
	"errors"
	"fmt"

	"github.com/grez-lucas/numericable-scraper/internal/logging"
	"github.com/grez-lucas/numericable-scraper/internal/reconcile"
	"github.com/grez-lucas/numericable-scraper/internal/scraper/provider"
	"github.com/shopspring/decimal"
)

// Termination codes reported to the host runner.
const (
	CodeLoginFailed  = "LOGIN_FAILED"
	CodeUnknownError = "UNKNOWN_ERROR"
)

// ProviderIdentifier tags bank operations paid to the provider.
const ProviderIdentifier = "numericable"

// LinkPolicy is the matching policy used for every bill.
var LinkPolicy = reconcile.Policy{
	MinDateDelta: 1,
	MaxDateDelta: 1,
	AmountDelta:  decimal.RequireFromString("0.1"),
	Identifiers:  []string{ProviderIdentifier},
}

// Params are the inputs of a run.
type Params struct {
	Credentials provider.Credentials
	// Folder is where bills are saved.
	Folder string
}

// BillSaver persists retained bills.
type BillSaver interface {
	SaveBills(ctx context.Context, bills []provider.Bill, params Params) error
}

// BankLinker reconciles one bill against bank operations. The selector
// argument is reserved and always empty.
type BankLinker interface {
	LinkBill(ctx context.Context, bill provider.Bill, selector string, policy reconcile.Policy) error
}

// Terminator receives the termination code of a failed run.
type Terminator interface {
	Terminate(code string)
}

// TerminatorFunc adapts a function to Terminator.
type TerminatorFunc func(code string)

func (f TerminatorFunc) Terminate(code string) { f(code) }

// TerminalError ends a run. Code is CodeLoginFailed or CodeUnknownError.
type TerminalError struct {
	Code  string
	Cause error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Cause)
}

func (e *TerminalError) Unwrap() error {
	return e.Cause
}

// CodeOf returns the termination code carried by err, or "" if err is not
// a TerminalError.
func CodeOf(err error) string {
	var te *TerminalError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

type Konnector struct {
	scraper    provider.BillScraper
	saver      BillSaver
	linker     BankLinker
	terminator Terminator
	log        logging.Logger
}

type Option func(*Konnector)

func WithTerminator(t Terminator) Option {
	return func(k *Konnector) { k.terminator = t }
}

func WithLogger(l logging.Logger) Option {
	return func(k *Konnector) { k.log = l }
}

func New(scraper provider.BillScraper, saver BillSaver, linker BankLinker, opts ...Option) *Konnector {
	k := &Konnector{
		scraper:    scraper,
		saver:      saver,
		linker:     linker,
		terminator: TerminatorFunc(func(string) {}),
		log:        logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Run performs one synchronization. On failure the terminator is called
// once and a *TerminalError is returned; nothing is retried.
func (k *Konnector) Run(ctx context.Context, params Params) ([]provider.Bill, error) {
	k.log.Info("Authenticating ...")
	if _, err := k.scraper.Login(ctx, params.Credentials); err != nil {
		code := CodeUnknownError
		if errors.Is(err, provider.ErrLoginFailed) {
			code = CodeLoginFailed
		}
		return nil, k.fail(code, "authentication failed", err)
	}
	k.log.Info("Successfully logged in")

	html, err := k.scraper.FetchBillsPage(ctx)
	if err != nil {
		return nil, k.fail(CodeUnknownError, "could not fetch the bills page", err)
	}

	bills, err := k.scraper.ParseBills(html)
	if err != nil {
		return nil, k.fail(CodeUnknownError, "could not parse the bills page", err)
	}

	if err := k.saver.SaveBills(ctx, bills, params); err != nil {
		return nil, k.fail(CodeUnknownError, "could not save bills", err)
	}

	for _, bill := range bills {
		if err := k.linker.LinkBill(ctx, bill, "", LinkPolicy); err != nil {
			return nil, k.fail(CodeUnknownError, "could not link bill to bank operations", err)
		}
	}

	k.log.Info("Synchronization done", logging.F(logging.FieldCount, len(bills)))
	return bills, nil
}

func (k *Konnector) fail(code, msg string, err error) error {
	k.log.WithError(err).Error(msg, logging.F(logging.FieldCode, code))
	k.terminator.Terminate(code)
	return &TerminalError{Code: code, Cause: err}
}
