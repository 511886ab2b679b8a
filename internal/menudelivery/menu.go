// Package menudelivery manages the interactive text menu of the ledger.
package menudelivery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/currencypkg"
	"github.com/go-petr/pet-ledger/pkg/logpkg"
	"github.com/rs/zerolog"
)

// AuthService provides registration and login needed by the menu.
//
//go:generate mockgen -source menu.go -destination menu_mock.go -package menudelivery
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (domain.AccountSummary, error)
	Login(ctx context.Context, email, password string) (domain.Session, error)
	Logout(ctx context.Context, token string) error
}

// SessionService resolves session tokens.
type SessionService interface {
	Verify(ctx context.Context, token string) (domain.Session, error)
}

// LedgerService provides single account operations.
type LedgerService interface {
	Deposit(ctx context.Context, sess domain.Session, amount int64) (int64, error)
	Withdraw(ctx context.Context, sess domain.Session, amount int64) (int64, error)
	Balance(ctx context.Context, sess domain.Session) (int64, error)
}

// TransferService moves funds between accounts.
type TransferService interface {
	Transfer(ctx context.Context, sess domain.Session, toEmail string, amount int64) (domain.TransferResult, error)
}

// ReportService provides administrative reports.
type ReportService interface {
	IsAdmin(email string) bool
	AllTransactions(ctx context.Context) []domain.OwnedTransaction
	TransactionsForUser(ctx context.Context, email string) ([]domain.Transaction, error)
	AllCustomers(ctx context.Context) []domain.AccountSummary
}

// Handler facilitates menu delivery layer logic.
type Handler struct {
	auth      AuthService
	sessions  SessionService
	ledger    LedgerService
	transfers TransferService
	reports   ReportService
	logger    zerolog.Logger
}

// NewHandler returns menu handler.
func NewHandler(as AuthService, ss SessionService, ls LedgerService, ts TransferService, rs ReportService, logger zerolog.Logger) *Handler {
	return &Handler{
		auth:      as,
		sessions:  ss,
		ledger:    ls,
		transfers: ts,
		reports:   rs,
		logger:    logger,
	}
}

const (
	dateLayout = "2006-01-02 15:04:05"
	separator  = "------------------------"
)

// conversation is the state of one Run call.
type conversation struct {
	in    *bufio.Scanner
	out   io.Writer
	token string
}

func (c *conversation) printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

// prompt prints label and reads one line. ok is false once input is exhausted.
func (c *conversation) prompt(label string) (line string, ok bool) {
	c.printf("%s", label)

	if !c.in.Scan() {
		return "", false
	}

	return strings.TrimSpace(c.in.Text()), true
}

// Run drives the menu until the user exits, input ends or ctx is done.
func (h *Handler) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	c := &conversation{in: bufio.NewScanner(in), out: out}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			exit bool
			ok   bool
		)

		if c.token == "" {
			exit, ok = h.guestMenu(ctx, c)
		} else {
			ok = h.accountMenu(ctx, c)
		}

		if exit {
			return nil
		}

		if !ok {
			return c.in.Err()
		}
	}
}

func (h *Handler) guestMenu(ctx context.Context, c *conversation) (exit, ok bool) {
	c.printf("\n1. Login\n2. Register\n3. Exit\n")

	choice, ok := c.prompt("Enter your choice: ")
	if !ok {
		return false, false
	}

	switch choice {
	case "1":
		return false, h.login(logpkg.WithOperation(ctx, h.logger, "login"), c)
	case "2":
		return false, h.register(logpkg.WithOperation(ctx, h.logger, "register"), c)
	case "3":
		c.printf("You are leaving the app!\n")
		return true, true
	default:
		c.printf("Invalid choice. Please try again.\n")
	}

	return false, true
}

func (h *Handler) accountMenu(ctx context.Context, c *conversation) bool {
	sess, err := h.sessions.Verify(ctx, c.token)
	if err != nil {
		h.logger.Info().Err(err).Msg("session dropped")
		c.token = ""
		c.printf("%s\n", message(err))

		return true
	}

	admin := h.reports.IsAdmin(sess.Email)

	c.printf("\nLogged in as: %s (%s)\n", sess.Name, sess.Email)
	c.printf("4. Check Balance\n5. Deposit\n6. Withdraw\n7. Transfer\n8. Logout\n")

	if admin {
		c.printf("9. View All Transactions\n10. View Transactions by User\n11. View All Customers\n")
	}

	choice, ok := c.prompt("Enter your choice: ")
	if !ok {
		return false
	}

	switch {
	case choice == "1":
		c.printf("You are already logged in.\n")
	case choice == "4":
		h.balance(logpkg.WithOperation(ctx, h.logger, "balance"), c, sess)
	case choice == "5":
		return h.deposit(logpkg.WithOperation(ctx, h.logger, "deposit"), c, sess)
	case choice == "6":
		return h.withdraw(logpkg.WithOperation(ctx, h.logger, "withdraw"), c, sess)
	case choice == "7":
		return h.transfer(logpkg.WithOperation(ctx, h.logger, "transfer"), c, sess)
	case choice == "8":
		h.logout(logpkg.WithOperation(ctx, h.logger, "logout"), c)
	case admin && choice == "9":
		h.allTransactions(logpkg.WithOperation(ctx, h.logger, "all_transactions"), c)
	case admin && choice == "10":
		return h.transactionsByUser(logpkg.WithOperation(ctx, h.logger, "transactions_by_user"), c)
	case admin && choice == "11":
		h.allCustomers(logpkg.WithOperation(ctx, h.logger, "all_customers"), c)
	default:
		c.printf("Invalid choice. Please try again.\n")
	}

	return true
}

func (h *Handler) login(ctx context.Context, c *conversation) bool {
	email, ok := c.prompt("Enter your email: ")
	if !ok {
		return false
	}

	password, ok := c.prompt("Enter your password: ")
	if !ok {
		return false
	}

	sess, err := h.auth.Login(ctx, email, password)
	if err != nil {
		h.report(ctx, c, err)
		return true
	}

	c.token = sess.Token
	c.printf("Login successful!\n")

	return true
}

func (h *Handler) register(ctx context.Context, c *conversation) bool {
	name, ok := c.prompt("Enter your name: ")
	if !ok {
		return false
	}

	email, ok := c.prompt("Enter your email: ")
	if !ok {
		return false
	}

	password, ok := c.prompt("Enter your password: ")
	if !ok {
		return false
	}

	if _, err := h.auth.Register(ctx, name, email, password); err != nil {
		h.report(ctx, c, err)
		return true
	}

	c.printf("Registration successful!\n")

	return true
}

func (h *Handler) logout(ctx context.Context, c *conversation) {
	if err := h.auth.Logout(ctx, c.token); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Send()
	}

	c.token = ""
	c.printf("Logged out.\n")
}

func (h *Handler) balance(ctx context.Context, c *conversation, sess domain.Session) {
	balance, err := h.ledger.Balance(ctx, sess)
	if err != nil {
		h.report(ctx, c, err)
		return
	}

	c.printf("Your current balance is: %s\n", currencypkg.FormatMinor(balance))
}

// readAmount prompts for an amount. parsed is false when the text is not a valid amount.
func (h *Handler) readAmount(c *conversation, label string) (amount int64, parsed, ok bool) {
	text, ok := c.prompt(label)
	if !ok {
		return 0, false, false
	}

	amount, err := currencypkg.ParseMinor(text)
	if err != nil || amount <= 0 {
		c.printf("Invalid amount.\n")
		return 0, false, true
	}

	return amount, true, true
}

func (h *Handler) deposit(ctx context.Context, c *conversation, sess domain.Session) bool {
	amount, parsed, ok := h.readAmount(c, "Enter the amount to deposit: ")
	if !parsed {
		return ok
	}

	balance, err := h.ledger.Deposit(ctx, sess, amount)
	if err != nil {
		h.report(ctx, c, err)
		return true
	}

	c.printf("Deposit successful! New balance: %s\n", currencypkg.FormatMinor(balance))

	return true
}

func (h *Handler) withdraw(ctx context.Context, c *conversation, sess domain.Session) bool {
	amount, parsed, ok := h.readAmount(c, "Enter the amount to withdraw: ")
	if !parsed {
		return ok
	}

	balance, err := h.ledger.Withdraw(ctx, sess, amount)
	if err != nil {
		h.report(ctx, c, err)
		return true
	}

	c.printf("Withdrawal successful! New balance: %s\n", currencypkg.FormatMinor(balance))

	return true
}

func (h *Handler) transfer(ctx context.Context, c *conversation, sess domain.Session) bool {
	to, ok := c.prompt("Enter recipient's email: ")
	if !ok {
		return false
	}

	amount, parsed, ok := h.readAmount(c, "Enter the amount to transfer: ")
	if !parsed {
		return ok
	}

	res, err := h.transfers.Transfer(ctx, sess, to, amount)
	if err != nil {
		h.report(ctx, c, err)
		return true
	}

	c.printf("Transfer successful! New balance: %s\n", currencypkg.FormatMinor(res.FromBalance))

	return true
}

func (h *Handler) allTransactions(ctx context.Context, c *conversation) {
	for _, tx := range h.reports.AllTransactions(ctx) {
		c.printf("Transaction Date: %s\n", tx.Timestamp.Local().Format(dateLayout))
		c.printf("User: %s\n", tx.Owner)
		c.printf("Amount: %s\n", currencypkg.FormatMinor(tx.Amount))
		c.printf("Description: %s\n", tx.Description)
		c.printf("%s\n", separator)
	}
}

func (h *Handler) transactionsByUser(ctx context.Context, c *conversation) bool {
	email, ok := c.prompt("Enter the user's email: ")
	if !ok {
		return false
	}

	txs, err := h.reports.TransactionsForUser(ctx, email)
	if err != nil || len(txs) == 0 {
		if err != nil {
			zerolog.Ctx(ctx).Info().Err(err).Send()
		}

		c.printf("User not found or no transactions found for this user.\n")

		return true
	}

	c.printf("Transactions for User: %s\n", email)

	for _, tx := range txs {
		c.printf("Transaction Date: %s\n", tx.Timestamp.Local().Format(dateLayout))
		c.printf("Amount: %s\n", currencypkg.FormatMinor(tx.Amount))
		c.printf("Description: %s\n", tx.Description)
		c.printf("%s\n", separator)
	}

	return true
}

func (h *Handler) allCustomers(ctx context.Context, c *conversation) {
	c.printf("List of All Customers:\n")

	for _, a := range h.reports.AllCustomers(ctx) {
		c.printf("Name: %s\n", a.Name)
		c.printf("Email: %s\n", a.Email)
		c.printf("Balance: %s\n", currencypkg.FormatMinor(a.Balance))
		c.printf("%s\n", separator)
	}
}

// report prints the user facing message for err and forgets the session when it ended.
func (h *Handler) report(ctx context.Context, c *conversation, err error) {
	l := zerolog.Ctx(ctx)

	switch {
	case errors.Is(err, domain.ErrPersistence), !isKnown(err):
		l.Error().Err(err).Send()
	default:
		l.Info().Err(err).Send()
	}

	if isSessionError(err) {
		c.token = ""
	}

	c.printf("%s\n", message(err))
}

func isSessionError(err error) bool {
	return errors.Is(err, domain.ErrInvalidSession) ||
		errors.Is(err, domain.ErrExpiredSession) ||
		errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, domain.ErrInvalidUser)
}

func isKnown(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrInvalidCredentials) ||
		errors.Is(err, domain.ErrEmailAlreadyExists) ||
		errors.Is(err, domain.ErrAccountNotFound) ||
		errors.Is(err, domain.ErrRecipientNotFound) ||
		errors.Is(err, domain.ErrInsufficientBalance) ||
		isSessionError(err)
}

func message(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return "Invalid amount."
	case errors.Is(err, domain.ErrSelfTransfer):
		return "You cannot transfer money to your own account."
	case errors.Is(err, domain.ErrInvalidInput):
		detail := strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error())
		if detail = strings.TrimPrefix(detail, ": "); detail == "" {
			detail = "Invalid input"
		}

		return "Registration failed. " + detail + "."
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "Login failed. Invalid email or password."
	case errors.Is(err, domain.ErrEmailAlreadyExists):
		return "User with this email already exists."
	case errors.Is(err, domain.ErrRecipientNotFound):
		return "Recipient not found."
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "Insufficient balance."
	case errors.Is(err, domain.ErrAccountNotFound):
		return "Account not found."
	case errors.Is(err, domain.ErrPersistence):
		return "The operation could not be saved. Nothing was changed."
	case errors.Is(err, domain.ErrExpiredSession):
		return "Your session has expired. Please log in again."
	case isSessionError(err):
		return "Your session has ended. Please log in again."
	}

	return "Something went wrong. Please try again."
}
