package store_test

import (
	"context"
	"testing"
	"time"

	"cashadvance/models"
	"cashadvance/pkg/apperr"
	"cashadvance/pkg/lifecycle"
	"cashadvance/pkg/testutil"
	"cashadvance/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	st  *store.Store
	ctx context.Context
}

func (s *StoreTestSuite) SetupTest() {
	s.st = testutil.NewStore(s.T())
	s.ctx = context.Background()
}

func (s *StoreTestSuite) newUser(email string) *models.User {
	u := &models.User{Email: email, PasswordHash: []byte("x"), FirstName: "F", LastName: "L"}
	s.Require().NoError(s.st.CreateUser(s.ctx, u))
	return u
}

func (s *StoreTestSuite) newApplication(ownerID, amount string) *models.Application {
	a := &models.Application{UserID: ownerID, Amount: decimal.RequireFromString(amount), Purpose: "Rent"}
	s.Require().NoError(s.st.CreateApplication(s.ctx, a))
	return a
}

func (s *StoreTestSuite) TestCreateUserNormalizesAndRejectsDuplicates() {
	u := s.newUser("  Alice@Example.COM ")
	s.NotEmpty(u.ID)
	s.Equal("alice@example.com", u.Email)

	dup := &models.User{Email: "alice@example.com", PasswordHash: []byte("y"), FirstName: "A", LastName: "B"}
	err := s.st.CreateUser(s.ctx, dup)
	s.Equal(apperr.KindConflict, apperr.KindOf(err))

	found, err := s.st.UserByEmail(s.ctx, "ALICE@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, found.ID)

	exists, err := s.st.EmailExists(s.ctx, "alice@example.com")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *StoreTestSuite) TestUserLookupsNotFound() {
	_, err := s.st.UserByID(s.ctx, "missing")
	s.Equal(apperr.KindNotFound, apperr.KindOf(err))
	_, err = s.st.UserByEmail(s.ctx, "nobody@example.com")
	s.Equal(apperr.KindNotFound, apperr.KindOf(err))
	s.Equal(apperr.KindNotFound, apperr.KindOf(s.st.SetPasswordHash(s.ctx, "missing", []byte("h"))))
}

func (s *StoreTestSuite) TestApplicationDefaultsAndRoundTrip() {
	u := s.newUser("bob@example.com")
	a := s.newApplication(u.ID, "500")
	s.Equal(lifecycle.Pending, a.Status)

	got, err := s.st.FindApplication(s.ctx, a.ID, u.ID)
	s.Require().NoError(err)
	s.True(got.Amount.Equal(decimal.NewFromInt(500)))
	s.True(got.Tip.IsZero())
	s.False(got.DisbursedAmount.Valid)
	s.Nil(got.DisbursementDate)
	s.Equal("Rent", got.Purpose)
}

func (s *StoreTestSuite) TestFindApplicationIsOwnerScoped() {
	owner := s.newUser("owner@example.com")
	other := s.newUser("other@example.com")
	a := s.newApplication(owner.ID, "100")

	_, err := s.st.FindApplication(s.ctx, a.ID, other.ID)
	s.Equal(apperr.KindNotFound, apperr.KindOf(err))
	_, err = s.st.FindApplication(s.ctx, "does-not-exist", owner.ID)
	s.Equal(apperr.KindNotFound, apperr.KindOf(err))

	n, err := s.st.UpdateApplicationIf(s.ctx, a.ID, other.ID, []lifecycle.Status{lifecycle.Pending},
		map[string]interface{}{"status": string(lifecycle.Cancelled)})
	s.Require().NoError(err)
	s.Zero(n)

	got, err := s.st.FindApplication(s.ctx, a.ID, owner.ID)
	s.Require().NoError(err)
	s.Equal(lifecycle.Pending, got.Status)
}

func (s *StoreTestSuite) TestUpdateApplicationIfChecksStatus() {
	u := s.newUser("carol@example.com")
	a := s.newApplication(u.ID, "200")

	n, err := s.st.UpdateApplicationIf(s.ctx, a.ID, u.ID, []lifecycle.Status{lifecycle.Approved},
		map[string]interface{}{"status": string(lifecycle.Disbursed)})
	s.Require().NoError(err)
	s.Zero(n)

	n, err = s.st.UpdateApplicationIf(s.ctx, a.ID, u.ID, []lifecycle.Status{lifecycle.Pending},
		map[string]interface{}{"status": string(lifecycle.Approved)})
	s.Require().NoError(err)
	s.EqualValues(1, n)

	got, err := s.st.FindApplication(s.ctx, a.ID, u.ID)
	s.Require().NoError(err)
	s.Equal(lifecycle.Approved, got.Status)
}

func (s *StoreTestSuite) TestListApplicationsNewestFirst() {
	u := s.newUser("dave@example.com")
	other := s.newUser("erin@example.com")
	first := s.newApplication(u.ID, "10")
	time.Sleep(5 * time.Millisecond)
	second := s.newApplication(u.ID, "20")
	s.newApplication(other.ID, "30")

	items, err := s.st.ListApplications(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal(second.ID, items[0].ID)
	s.Equal(first.ID, items[1].ID)

	all, err := s.st.ListForReview(s.ctx, "", 0)
	s.Require().NoError(err)
	s.Len(all, 3)

	none, err := s.st.ListForReview(s.ctx, lifecycle.Repaid, 10)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *StoreTestSuite) TestWithTxRollsBack() {
	u := s.newUser("frank@example.com")
	err := s.st.WithTx(s.ctx, func(tx *store.Store) error {
		a := &models.Application{UserID: u.ID, Amount: decimal.NewFromInt(5), Purpose: "x"}
		if err := tx.CreateApplication(s.ctx, a); err != nil {
			return err
		}
		return apperr.State("abort")
	})
	s.Equal(apperr.KindState, apperr.KindOf(err))

	items, err := s.st.ListApplications(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Empty(items)
}

func (s *StoreTestSuite) TestTransactionsFilter() {
	u := s.newUser("gina@example.com")
	a := s.newApplication(u.ID, "50")
	appID := a.ID
	s.Require().NoError(s.st.CreateTransaction(s.ctx, &models.Transaction{
		UserID: u.ID, ApplicationID: &appID, Amount: decimal.NewFromInt(50),
		Type: models.TransactionAdjustment, Status: models.TransactionCompleted,
	}))
	s.Require().NoError(s.st.CreateTransaction(s.ctx, &models.Transaction{
		UserID: u.ID, Amount: decimal.NewFromInt(1), Type: models.TransactionRefund,
	}))

	all, err := s.st.ListTransactions(s.ctx, u.ID, "")
	s.Require().NoError(err)
	s.Len(all, 2)

	scoped, err := s.st.ListTransactions(s.ctx, u.ID, a.ID)
	s.Require().NoError(err)
	s.Require().Len(scoped, 1)
	s.Equal(models.TransactionCompleted, scoped[0].Status)

	foreign, err := s.st.ListTransactions(s.ctx, "someone-else", "")
	s.Require().NoError(err)
	s.Empty(foreign)
}

func (s *StoreTestSuite) TestRefreshTokenRevokeOnce() {
	u := s.newUser("hank@example.com")
	s.Require().NoError(s.st.CreateRefreshToken(s.ctx, u.ID, "hash-1", time.Now().Add(time.Hour)))
	rt, err := s.st.RefreshTokenByHash(s.ctx, "hash-1")
	s.Require().NoError(err)

	ok, err := s.st.RevokeRefreshToken(s.ctx, rt.ID)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.st.RevokeRefreshToken(s.ctx, rt.ID)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.st.CreateRefreshToken(s.ctx, u.ID, "hash-old", time.Now().Add(-time.Hour)))
	n, err := s.st.DeleteExpiredRefreshTokens(s.ctx, time.Now())
	s.Require().NoError(err)
	s.EqualValues(1, n)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := store.Open(store.Config{Driver: "oracle"}, nil)
	require.Error(t, err)
	_, err = store.Open(store.Config{Driver: "postgres"}, nil)
	assert.ErrorContains(t, err, "DB_DSN")
}
