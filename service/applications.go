package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cashadvance/models"
	"cashadvance/pkg/apperr"
	"cashadvance/pkg/lifecycle"
	"cashadvance/pkg/logger"
	"cashadvance/pkg/money"
	"cashadvance/store"

	"github.com/shopspring/decimal"
)

const maxPurposeLen = 500

// TransitionRecorder receives one call per lifecycle action with its outcome.
type TransitionRecorder interface {
	Transition(action, result string)
}

type ApplicationOptions struct {
	// AutoApprove moves new applications straight to APPROVED.
	AutoApprove bool
}

type ApplicationService struct {
	st   *store.Store
	opts ApplicationOptions
	log  *slog.Logger
	rec  TransitionRecorder
	now  func() time.Time
}

func NewApplicationService(st *store.Store, opts ApplicationOptions, log *slog.Logger, rec TransitionRecorder) *ApplicationService {
	if log == nil {
		log = logger.Discard()
	}
	return &ApplicationService{st: st, opts: opts, log: log, rec: rec, now: time.Now}
}

type CreateInput struct {
	Amount          *decimal.Decimal
	Purpose         string
	ExpressDelivery *bool
	Tip             *decimal.Decimal
}

// UpdateInput lists the only fields a client may edit; nil means unchanged.
type UpdateInput struct {
	Amount          *decimal.Decimal
	Purpose         *string
	ExpressDelivery *bool
	Tip             *decimal.Decimal
}

func (s *ApplicationService) Create(ctx context.Context, ownerID string, in CreateInput) (*models.Application, error) {
	amount, err := money.Positive("amount", in.Amount)
	if err != nil {
		return nil, err
	}
	purpose, err := checkPurpose(in.Purpose)
	if err != nil {
		return nil, err
	}
	tip, err := money.NonNegative("tip", in.Tip)
	if err != nil {
		return nil, err
	}
	app := &models.Application{
		UserID:  ownerID,
		Amount:  amount,
		Purpose: purpose,
		Status:  lifecycle.Pending,
		Tip:     tip,
	}
	if in.ExpressDelivery != nil {
		app.ExpressDelivery = *in.ExpressDelivery
	}
	var out *models.Application
	err = s.st.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.CreateApplication(ctx, app); err != nil {
			return err
		}
		if s.opts.AutoApprove {
			now := s.now()
			if _, err := tx.UpdateApplicationIf(ctx, app.ID, ownerID, lifecycle.Allowed(lifecycle.Approve), map[string]interface{}{
				"status":      string(lifecycle.Approved),
				"approved_at": now,
				"approved_by": lifecycle.AutoApprover,
			}); err != nil {
				return err
			}
		}
		var err error
		out, err = tx.FindApplication(ctx, app.ID, ownerID)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	s.log.InfoContext(ctx, "application created", "application_id", out.ID, "user_id", ownerID, "status", out.Status)
	return out, nil
}

func (s *ApplicationService) Get(ctx context.Context, ownerID, id string) (*models.Application, error) {
	app, err := s.st.FindApplication(ctx, id, ownerID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return app, nil
}

func (s *ApplicationService) List(ctx context.Context, ownerID string) ([]models.Application, error) {
	items, err := s.st.ListApplications(ctx, ownerID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return items, nil
}

// Update edits allow-listed fields of a PENDING application.
func (s *ApplicationService) Update(ctx context.Context, ownerID, id string, in UpdateInput) (*models.Application, error) {
	set := map[string]interface{}{}
	if in.Amount != nil {
		v, err := money.Positive("amount", in.Amount)
		if err != nil {
			return nil, err
		}
		set["amount"] = v
	}
	if in.Purpose != nil {
		v, err := checkPurpose(*in.Purpose)
		if err != nil {
			return nil, err
		}
		set["purpose"] = v
	}
	if in.ExpressDelivery != nil {
		set["express_delivery"] = *in.ExpressDelivery
	}
	if in.Tip != nil {
		v, err := money.NonNegative("tip", in.Tip)
		if err != nil {
			return nil, err
		}
		set["tip"] = v
	}
	return s.transition(ctx, lifecycle.Update, ownerID, id, set, nil)
}

func (s *ApplicationService) Disburse(ctx context.Context, ownerID, id string, amount *decimal.Decimal) (*models.Application, error) {
	v, err := money.Positive("amount", amount)
	if err != nil {
		return nil, err
	}
	now := s.now()
	set := map[string]interface{}{
		"status":            string(lifecycle.Disbursed),
		"disbursed_amount":  decimal.NewNullDecimal(v),
		"disbursement_date": now,
	}
	return s.transition(ctx, lifecycle.Disburse, ownerID, id, set, func(tx *store.Store, app *models.Application) error {
		return s.post(ctx, tx, app, v, models.TransactionAdjustment, "disbursement")
	})
}

// Repay settles the application in full on the first call, whatever the amount.
func (s *ApplicationService) Repay(ctx context.Context, ownerID, id string, amount *decimal.Decimal) (*models.Application, error) {
	v, err := money.Positive("amount", amount)
	if err != nil {
		return nil, err
	}
	now := s.now()
	set := map[string]interface{}{
		"status":         string(lifecycle.Repaid),
		"repaid_amount":  decimal.NewNullDecimal(v),
		"repayment_date": now,
	}
	return s.transition(ctx, lifecycle.Repay, ownerID, id, set, func(tx *store.Store, app *models.Application) error {
		return s.post(ctx, tx, app, v, models.TransactionPayment, "repayment")
	})
}

func (s *ApplicationService) Cancel(ctx context.Context, ownerID, id string) (*models.Application, error) {
	set := map[string]interface{}{"status": string(lifecycle.Cancelled)}
	return s.transition(ctx, lifecycle.Cancel, ownerID, id, set, nil)
}

// Transactions lists the caller's ledger lines, optionally for one owned application.
func (s *ApplicationService) Transactions(ctx context.Context, ownerID, applicationID string) ([]models.Transaction, error) {
	if applicationID != "" {
		if _, err := s.st.FindApplication(ctx, applicationID, ownerID); err != nil {
			return nil, apperr.Wrap(err)
		}
	}
	items, err := s.st.ListTransactions(ctx, ownerID, applicationID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return items, nil
}

// ListForReview lists every user's applications. Callers must be admins.
func (s *ApplicationService) ListForReview(ctx context.Context, status string) ([]models.Application, error) {
	var st lifecycle.Status
	if strings.TrimSpace(status) != "" {
		var err error
		if st, err = lifecycle.Parse(status); err != nil {
			return nil, err
		}
	}
	items, err := s.st.ListForReview(ctx, st, 0)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return items, nil
}

// Reject is the manual-review rejection of a not yet disbursed application. Callers must be admins.
func (s *ApplicationService) Reject(ctx context.Context, reviewerID, id, reason string) (*models.Application, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}
	if len(reason) > maxPurposeLen {
		return nil, apperr.Validation(fmt.Sprintf("reason must be at most %d characters", maxPurposeLen))
	}
	var out *models.Application
	err := s.st.WithTx(ctx, func(tx *store.Store) error {
		n, err := tx.ReviewUpdateIf(ctx, id, lifecycle.Allowed(lifecycle.Reject), map[string]interface{}{
			"status":           string(lifecycle.Rejected),
			"rejection_reason": reason,
		})
		if err != nil {
			return err
		}
		cur, err := tx.FindForReview(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return refusal(lifecycle.Reject, cur.Status)
		}
		out = cur
		return nil
	})
	s.record(lifecycle.Reject, err)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	s.log.InfoContext(ctx, "application rejected", "application_id", id, "reviewer_id", reviewerID)
	return out, nil
}

// transition runs one guarded write: the conditional update, then on success
// the optional post step, all in one transaction. A refused call writes nothing.
func (s *ApplicationService) transition(ctx context.Context, action lifecycle.Action, ownerID, id string, set map[string]interface{},
	post func(tx *store.Store, app *models.Application) error) (*models.Application, error) {
	var out *models.Application
	err := s.st.WithTx(ctx, func(tx *store.Store) error {
		if len(set) == 0 {
			cur, err := tx.FindApplication(ctx, id, ownerID)
			if err != nil {
				return err
			}
			if err := lifecycle.Check(action, cur.Status); err != nil {
				return err
			}
			out = cur
			return nil
		}
		n, err := tx.UpdateApplicationIf(ctx, id, ownerID, lifecycle.Allowed(action), set)
		if err != nil {
			return err
		}
		cur, err := tx.FindApplication(ctx, id, ownerID)
		if err != nil {
			return err
		}
		if n == 0 {
			return refusal(action, cur.Status)
		}
		if post != nil {
			if err := post(tx, cur); err != nil {
				return err
			}
		}
		out = cur
		return nil
	})
	s.record(action, err)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	s.log.InfoContext(ctx, "application transition", "action", string(action), "application_id", id, "user_id", ownerID, "status", out.Status)
	return out, nil
}

func (s *ApplicationService) post(ctx context.Context, tx *store.Store, app *models.Application, amount decimal.Decimal, typ models.TransactionType, desc string) error {
	appID := app.ID
	d := desc
	return tx.CreateTransaction(ctx, &models.Transaction{
		Amount:        amount,
		Type:          typ,
		Status:        models.TransactionCompleted,
		Description:   &d,
		Reference:     &appID,
		UserID:        app.UserID,
		ApplicationID: &appID,
	})
}

func (s *ApplicationService) record(action lifecycle.Action, err error) {
	if s.rec == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = apperr.KindOf(err).String()
	}
	s.rec.Transition(string(action), result)
}

// refusal explains why a conditional update changed nothing although the row exists.
func refusal(action lifecycle.Action, current lifecycle.Status) error {
	if err := lifecycle.Check(action, current); err != nil {
		return err
	}
	return apperr.State("application changed concurrently; retry")
}

func checkPurpose(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", apperr.Validation("purpose is required")
	}
	if len(p) > maxPurposeLen {
		return "", apperr.Validation(fmt.Sprintf("purpose must be at most %d characters", maxPurposeLen))
	}
	return p, nil
}
