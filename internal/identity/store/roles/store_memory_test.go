package roles

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "wellgate/pkg/domain"
)

type RoleStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *RoleStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestRoleStoreSuite(t *testing.T) {
	suite.Run(t, new(RoleStoreSuite))
}

func (s *RoleStoreSuite) TestGrants() {
	s.Run("empty for unknown user", func() {
		grants, err := s.store.RolesByUserID(s.ctx, id.UserID(uuid.New()))
		s.Require().NoError(err)
		s.Empty(grants)
	})

	s.Run("returns every grant including unrecognized names", func() {
		userID := id.UserID(uuid.New())
		s.store.Grant(userID, "participant")
		s.store.Grant(userID, "beta_tester")

		grants, err := s.store.RolesByUserID(s.ctx, userID)
		s.Require().NoError(err)
		s.ElementsMatch([]string{"participant", "beta_tester"}, grants)
	})
}

func (s *RoleStoreSuite) TestScopedLookups() {
	s.Run("company lookup is nil when user manages nothing", func() {
		companyID, err := s.store.CompanyIDByManager(s.ctx, id.UserID(uuid.New()))
		s.Require().NoError(err)
		s.Nil(companyID)
	})

	s.Run("company lookup returns bound company", func() {
		userID := id.UserID(uuid.New())
		companyID := id.CompanyID(uuid.New())
		s.store.SetManagedCompany(userID, companyID)

		got, err := s.store.CompanyIDByManager(s.ctx, userID)
		s.Require().NoError(err)
		s.Require().NotNil(got)
		s.Equal(companyID, *got)
	})

	s.Run("participant lookup returns bound record", func() {
		userID := id.UserID(uuid.New())
		participantID := id.ParticipantID(uuid.New())
		s.store.SetParticipant(userID, participantID)

		got, err := s.store.ParticipantIDByUser(s.ctx, userID)
		s.Require().NoError(err)
		s.Require().NotNil(got)
		s.Equal(participantID, *got)
	})
}
