package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"lab-management-platform/internal/integrations/notification"
	"lab-management-platform/internal/logger"
	"lab-management-platform/internal/models"
	"lab-management-platform/internal/repositories"
)

// AuthEventRecorder is the sink for authentication events
type AuthEventRecorder interface {
	Record(ctx context.Context, userName string, eventType models.AuthEventType, details string) *models.AuthEvent
}

// invitationService implements InvitationService
type invitationService struct {
	logger    *logger.Logger
	access    AccessService
	tokens    TokenService
	sender    notification.Sender
	events    AuthEventRecorder
	validator *models.ValidationService
	baseURL   string
}

// NewInvitationService creates the invitation and password reset flows
func NewInvitationService(
	logger *logger.Logger,
	access AccessService,
	tokens TokenService,
	sender notification.Sender,
	events AuthEventRecorder,
	validator *models.ValidationService,
	baseURL string,
) InvitationService {
	return &invitationService{
		logger:    logger,
		access:    access,
		tokens:    tokens,
		sender:    sender,
		events:    events,
		validator: validator,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

func (s *invitationService) link(path, token string) string {
	return s.baseURL + path + "?token=" + url.QueryEscape(token)
}

// Invite adds the email to the organization, or re-sends the invitation when
// the membership is still Invited, and emails a fresh token.
func (s *invitationService) Invite(ctx context.Context, actor string, req *models.InviteUserRequest) (*models.InvitationResult, error) {
	if req == nil {
		return nil, &models.ValidationError{Fields: []string{"request is required"}}
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	org, err := s.access.GetOrganization(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}

	result, err := s.resend(ctx, req)
	if err != nil {
		return nil, err
	}
	if result == nil {
		added, err := s.access.AddUserToOrganization(ctx, actor, &models.AddOrganizationUserRequest{
			OrganizationID:    req.OrganizationID,
			Email:             req.Email,
			OrganizationAdmin: req.OrganizationAdmin,
		})
		if err != nil {
			return nil, err
		}
		result = &models.InvitationResult{User: added.User, OrganizationUser: added.OrganizationUser}
	}

	token, err := s.tokens.Issue(PurposeUserInvitation, TokenSubject{
		UserID:         result.User.UserID,
		OrganizationID: org.OrganizationID,
		Email:          repositories.NormalizeEmail(result.User.Email),
	})
	if err != nil {
		return nil, err
	}
	result.Token = token

	err = s.sender.Send(ctx, notification.UserInvitationTemplate, result.User.Email, notification.TemplateData{
		RecipientName:    result.User.DisplayName(),
		OrganizationName: org.Name,
		Link:             s.link("/invitation", token),
		ExpiresIn:        describeTTL(s.tokens.TTL(PurposeUserInvitation)),
	})
	if err != nil {
		return nil, fmt.Errorf("invitation for %s stored but not delivered: %w", result.User.UserID, err)
	}

	s.events.Record(ctx, result.User.Email, models.AuthEventInvitationSent, org.OrganizationID)
	s.logger.WithOrganization(org.OrganizationID).
		WithField("user_id", result.User.UserID).
		WithField("resent", result.Resent).
		Info("Invitation sent")
	return result, nil
}

// resend returns the existing user and membership when the invitation may be
// re-sent, nil when the membership does not exist yet, and ErrInvalidState
// when it was already accepted or deactivated.
func (s *invitationService) resend(ctx context.Context, req *models.InviteUserRequest) (*models.InvitationResult, error) {
	user, err := s.access.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	member, err := s.access.GetOrganizationUser(ctx, req.OrganizationID, user.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if member.Status != models.UserStatusInvited {
		return nil, models.ErrInvalidState
	}
	return &models.InvitationResult{User: user, OrganizationUser: member, Resent: true}, nil
}

// AcceptInvitation verifies the token and activates the invited membership
func (s *invitationService) AcceptInvitation(ctx context.Context, req *models.AcceptInvitationRequest) (*models.User, error) {
	if req == nil {
		return nil, &models.ValidationError{Fields: []string{"request is required"}}
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	subject, err := s.tokens.Verify(req.Token, PurposeUserInvitation)
	if err != nil {
		return nil, err
	}

	user, err := s.boundUser(ctx, subject)
	if err != nil {
		return nil, err
	}

	activated, err := s.access.ActivateInvitedUser(ctx, user.UserID, subject.OrganizationID, req.UserProfile)
	if err != nil {
		return nil, err
	}

	s.events.Record(ctx, activated.Email, models.AuthEventInvitationAccepted, subject.OrganizationID)
	return activated, nil
}

// RequestPasswordReset emails a one hour reset token to an active user
func (s *invitationService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.access.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user.Status != models.UserStatusActive {
		return "", models.ErrInvalidState
	}

	token, err := s.tokens.Issue(PurposeUserForgotPassword, TokenSubject{
		UserID: user.UserID,
		Email:  repositories.NormalizeEmail(user.Email),
	})
	if err != nil {
		return "", err
	}

	err = s.sender.Send(ctx, notification.UserForgotPasswordTemplate, user.Email, notification.TemplateData{
		RecipientName: user.DisplayName(),
		Link:          s.link("/reset-password", token),
		ExpiresIn:     describeTTL(s.tokens.TTL(PurposeUserForgotPassword)),
	})
	if err != nil {
		return "", err
	}

	s.events.Record(ctx, user.Email, models.AuthEventPasswordResetRequested, "")
	return token, nil
}

// VerifyPasswordReset resolves the user a reset token was issued to
func (s *invitationService) VerifyPasswordReset(ctx context.Context, token string) (*models.User, error) {
	subject, err := s.tokens.Verify(token, PurposeUserForgotPassword)
	if err != nil {
		return nil, err
	}

	user, err := s.boundUser(ctx, subject)
	if err != nil {
		return nil, err
	}
	if user.Status != models.UserStatusActive {
		return nil, models.ErrInvalidState
	}

	s.events.Record(ctx, user.Email, models.AuthEventPasswordResetCompleted, "")
	return user, nil
}

// boundUser loads the token's user and rejects the token when the user has
// since changed email.
func (s *invitationService) boundUser(ctx context.Context, subject *TokenSubject) (*models.User, error) {
	user, err := s.access.GetUser(ctx, subject.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	if subject.Email != "" && repositories.NormalizeEmail(user.Email) != subject.Email {
		s.events.Record(ctx, user.Email, models.AuthEventTokenRejected, "email changed since issue")
		return nil, models.ErrTokenInvalid
	}
	return user, nil
}
