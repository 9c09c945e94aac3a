package service_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/emailoutbox"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/email"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/testutil"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

type EmailOutboxServiceSuite struct {
	testutil.BaseServiceTestSuite
	svc service.EmailOutboxService
}

func TestEmailOutboxService(t *testing.T) {
	suite.Run(t, new(EmailOutboxServiceSuite))
}

func (s *EmailOutboxServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.svc = service.NewEmailOutboxService(s.ServiceParams())
}

func (s *EmailOutboxServiceSuite) enqueue(to, template string, maxAttempts int, isAdminAlert bool) *emailoutbox.Entry {
	e, err := s.GetStores().EmailOutboxRepo.Enqueue(s.GetContext(), emailoutbox.EnqueueInput{
		To:           to,
		Template:     template,
		Payload:      types.JSONMap{"k": "v"},
		MaxAttempts:  maxAttempts,
		IsAdminAlert: isAdminAlert,
	})
	s.Require().NoError(err)
	return e
}

func (s *EmailOutboxServiceSuite) TestDispatchSendsAndMarksSent() {
	s.enqueue("a@example.com", email.TemplatePurchaseReceipt, 5, false)
	s.enqueue("b@example.com", email.TemplatePurchaseReceipt, 5, false)

	sent, err := s.svc.DispatchBatch(s.GetContext(), 10)
	s.NoError(err)
	s.Equal(2, sent)
	s.Len(s.GetCollaborators().Sender.Sent, 2)

	pending, err := s.GetStores().EmailOutboxRepo.ClaimPendingBatch(s.GetContext(), 10)
	s.NoError(err)
	s.Empty(pending)
}

func (s *EmailOutboxServiceSuite) TestDispatchRespectsBatchLimit() {
	s.enqueue("a@example.com", email.TemplatePurchaseReceipt, 5, false)
	s.enqueue("b@example.com", email.TemplatePurchaseReceipt, 5, false)
	s.enqueue("c@example.com", email.TemplatePurchaseReceipt, 5, false)

	sent, err := s.svc.DispatchBatch(s.GetContext(), 2)
	s.NoError(err)
	s.Equal(2, sent)

	pending, err := s.GetStores().EmailOutboxRepo.ClaimPendingBatch(s.GetContext(), 10)
	s.NoError(err)
	s.Len(pending, 1)
}

func (s *EmailOutboxServiceSuite) TestTransientFailureKeepsEntryPending() {
	s.enqueue("a@example.com", email.TemplatePurchaseReceipt, 5, false)
	s.GetCollaborators().Sender.FailNext = errors.New("smtp timeout")

	sent, err := s.svc.DispatchBatch(s.GetContext(), 10)
	s.NoError(err)
	s.Equal(0, sent)

	pending, err := s.GetStores().EmailOutboxRepo.ClaimPendingBatch(s.GetContext(), 10)
	s.NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(1, pending[0].Attempts)
	s.Equal(types.EmailOutboxPending, pending[0].Status)

	// Next dispatch retries and succeeds.
	sent, err = s.svc.DispatchBatch(s.GetContext(), 10)
	s.NoError(err)
	s.Equal(1, sent)
}

func (s *EmailOutboxServiceSuite) TestTerminalFailureEnqueuesAdminAlert() {
	s.enqueue("a@example.com", email.TemplatePurchaseReceipt, 1, false)
	s.GetCollaborators().Sender.FailNext = errors.New("mailbox gone")

	sent, err := s.svc.DispatchBatch(s.GetContext(), 10)
	s.NoError(err)
	s.Equal(0, sent)

	pending, err := s.GetStores().EmailOutboxRepo.ClaimPendingBatch(s.GetContext(), 10)
	s.NoError(err)
	s.Require().Len(pending, 1)
	s.True(pending[0].IsAdminAlert)
	s.Equal(email.TemplateAdminAlert, pending[0].Template)
	s.Equal("ops@example.com", pending[0].To)
}

func (s *EmailOutboxServiceSuite) TestAdminAlertFailureDoesNotRecurse() {
	s.enqueue("ops@example.com", email.TemplateAdminAlert, 1, true)
	s.GetCollaborators().Sender.FailNext = errors.New("smtp down")

	sent, err := s.svc.DispatchBatch(s.GetContext(), 10)
	s.NoError(err)
	s.Equal(0, sent)

	// The failed alert is terminal and no further alert was enqueued.
	pending, err := s.GetStores().EmailOutboxRepo.ClaimPendingBatch(s.GetContext(), 10)
	s.NoError(err)
	s.Empty(pending)
}
