package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"travelbook/internal/auth"
	"travelbook/internal/domain"
	"travelbook/internal/events"
	"travelbook/internal/logging"
	"travelbook/internal/metrics"
	"travelbook/internal/models"
	"travelbook/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var validate = validator.New()

type RegisterInput struct {
	Email     string `validate:"required,email"`
	Password  string `validate:"required,min=8"`
	FirstName string `validate:"required"`
	LastName  string
}

type AuthResult struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	SessionID string      `json:"session_id"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Principal is the caller behind a valid session token.
type Principal struct {
	UserID    string
	SessionID string
}

// AuthService registers and authenticates users across the relational user
// store and the row store. Without a relational store it works on the row
// store alone.
type AuthService struct {
	users      domain.UserStore
	logins     domain.LoginRecorder
	tables     *repository.Tables
	store      domain.RowStore
	ids        domain.IDAllocator
	tokens     *auth.TokenIssuer
	sessionTTL time.Duration
	queue      domain.TaskQueue
	events     domain.EventPublisher
	logger     *zerolog.Logger
	now        func() time.Time

	// serializes sheets-only registrations, which have no unique index
	registerMu sync.Mutex
}

type AuthDeps struct {
	Users      domain.UserStore
	Logins     domain.LoginRecorder
	Tables     *repository.Tables
	IDs        domain.IDAllocator
	Tokens     *auth.TokenIssuer
	SessionTTL time.Duration
	Queue      domain.TaskQueue
	Events     domain.EventPublisher
	Logger     *zerolog.Logger
}

func NewAuthService(deps AuthDeps) *AuthService {
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = models.DefaultSessionTTL
	}
	return &AuthService{
		users:      deps.Users,
		logins:     deps.Logins,
		tables:     deps.Tables,
		store:      deps.Tables.Store(),
		ids:        deps.IDs,
		tokens:     deps.Tokens,
		sessionTTL: ttl,
		queue:      deps.Queue,
		events:     deps.Events,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// SheetsOnly reports whether the row store is the only user store.
func (s *AuthService) SheetsOnly() bool {
	return s.users == nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := validate.Struct(in); err != nil {
		return nil, domain.Errorf(domain.ErrValidation, "invalid registration: %s", describeValidation(err))
	}
	if s.SheetsOnly() {
		return s.registerSheetsOnly(ctx, in)
	}

	userID, err := s.ids.Allocate(ctx, models.UserIDs)
	if err != nil {
		return nil, err
	}

	_, err = s.users.GetUserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, domain.Errorf(domain.ErrDuplicateUser, "a user with email %s already exists", in.Email)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, domain.StoreError("lookup", "users", err)
	}

	user, err := s.newUser(userID, in)
	if err != nil {
		return nil, err
	}

	tx, err := s.users.BeginUserTx(ctx)
	if err != nil {
		return nil, domain.StoreError("begin", "users", err)
	}
	if err := tx.InsertUser(ctx, &user); err != nil {
		s.rollback(tx, "insert_user")
		if errors.Is(err, domain.ErrDuplicateUser) {
			return nil, err
		}
		return nil, domain.StoreError("insert", "users", err)
	}

	if err := s.store.AppendRow(ctx, models.TableUser, user.Values()); err != nil {
		s.rollback(tx, "user_row")
		return nil, syncFailure("user row", err)
	}

	result, session, err := s.openSession(ctx, user)
	if err != nil {
		s.rollback(tx, "session_row")
		s.tombstone(ctx, models.TableUser, user.ID)
		return nil, syncFailure("session row", err)
	}

	if err := tx.Commit(); err != nil {
		metrics.IncSagaRollback("commit")
		s.tombstone(ctx, models.TableSession, session.ID)
		s.tombstone(ctx, models.TableUser, user.ID)
		return nil, syncFailure("commit", err)
	}

	s.publishUser(user)
	logging.For(ctx, s.logger).Info().Str("user_id", user.ID).Msg("user registered")
	return result, nil
}

func (s *AuthService) registerSheetsOnly(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	userID, err := s.ids.Allocate(ctx, models.UserIDs)
	if err != nil {
		return nil, err
	}
	if _, err := s.findSheetUser(ctx, in.Email); err == nil {
		return nil, domain.Errorf(domain.ErrDuplicateUser, "a user with email %s already exists", in.Email)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	user, err := s.newUser(userID, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.AppendRow(ctx, models.TableUser, user.Values()); err != nil {
		return nil, err
	}
	result, _, err := s.openSession(ctx, user)
	if err != nil {
		s.tombstone(ctx, models.TableUser, user.ID)
		return nil, syncFailure("session row", err)
	}

	s.publishUser(user)
	logging.For(ctx, s.logger).Info().Str("user_id", user.ID).Msg("user registered without relational store")
	return result, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.Errorf(domain.ErrValidation, "email and password are required")
	}

	user, err := s.lookupForLogin(ctx, email)
	if err != nil {
		return nil, err
	}
	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		logging.For(ctx, s.logger).Warn().Err(err).Str("user_id", user.ID).Msg("stored password hash is unreadable")
	}
	if !ok {
		return nil, domain.Errorf(domain.ErrInvalidCredentials, "invalid email or password")
	}
	if !user.IsActive {
		return nil, domain.Errorf(domain.ErrUnauthorized, "account is disabled")
	}

	sessionID, err := s.ids.Allocate(ctx, models.SessionIDs)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	session, token, err := s.issue(user.ID, sessionID, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.AppendRow(ctx, models.TableSession, session.Values()); err != nil {
		logging.For(ctx, s.logger).Warn().Err(err).Str("user_id", user.ID).Msg("session row append failed, queued for retry")
		s.enqueue(ctx, models.TaskAppendRow, models.TableSession, session.ID, session.Values())
	}
	s.recordLogin(ctx, *user, now)

	user.LastLogin = &now
	return &AuthResult{User: *user, Token: token, SessionID: session.ID, ExpiresAt: session.ExpiresAt}, nil
}

// Authenticate resolves a bearer token to its user. The token must carry a
// valid signature and match a session row that has not expired.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	row, err := s.tables.FindRowByID(ctx, models.TableSession, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Errorf(domain.ErrUnauthorized, "session not found")
		}
		return nil, err
	}
	session, err := models.SessionFromRow(row)
	if err != nil {
		return nil, domain.StoreError("parse", models.TableSession, err)
	}
	if session.Token != token || session.UserID != claims.Subject {
		return nil, domain.Errorf(domain.ErrUnauthorized, "session does not match token")
	}
	if !session.Valid(s.now()) {
		return nil, domain.Errorf(domain.ErrUnauthorized, "session expired")
	}
	return &Principal{UserID: session.UserID, SessionID: session.ID}, nil
}

func (s *AuthService) newUser(id string, in RegisterInput) (models.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	now := s.now().UTC()
	return models.User{
		ID:           id,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         models.RoleCustomer,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// openSession allocates, signs and appends a session for user.
func (s *AuthService) openSession(ctx context.Context, user models.User) (*AuthResult, models.Session, error) {
	sessionID, err := s.ids.Allocate(ctx, models.SessionIDs)
	if err != nil {
		return nil, models.Session{}, err
	}
	session, token, err := s.issue(user.ID, sessionID, s.now().UTC())
	if err != nil {
		return nil, models.Session{}, err
	}
	if err := s.store.AppendRow(ctx, models.TableSession, session.Values()); err != nil {
		return nil, models.Session{}, err
	}
	return &AuthResult{User: user, Token: token, SessionID: session.ID, ExpiresAt: session.ExpiresAt}, session, nil
}

func (s *AuthService) issue(userID, sessionID string, now time.Time) (models.Session, string, error) {
	now = now.Truncate(time.Second)
	expiresAt := now.Add(s.sessionTTL)
	token, err := s.tokens.Issue(userID, sessionID, now, expiresAt)
	if err != nil {
		return models.Session{}, "", err
	}
	return models.Session{ID: sessionID, UserID: userID, Token: token, CreatedAt: now, ExpiresAt: expiresAt}, token, nil
}

func (s *AuthService) lookupForLogin(ctx context.Context, email string) (*models.User, error) {
	if s.SheetsOnly() {
		u, err := s.findSheetUser(ctx, email)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Errorf(domain.ErrInvalidCredentials, "invalid email or password")
		}
		return u, err
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Errorf(domain.ErrInvalidCredentials, "invalid email or password")
	}
	if err != nil {
		return nil, domain.StoreError("lookup", "users", err)
	}
	return u, nil
}

func (s *AuthService) findSheetUser(ctx context.Context, email string) (*models.User, error) {
	users, err := s.tables.Users(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if normalizeEmail(users[i].Email) == email {
			return &users[i], nil
		}
	}
	return nil, domain.Errorf(domain.ErrNotFound, "user not found")
}

// recordLogin is bookkeeping: failures are logged or queued, never returned.
func (s *AuthService) recordLogin(ctx context.Context, user models.User, at time.Time) {
	if s.logins != nil {
		if err := s.logins.UpdateLastLogin(ctx, user.ID, at); err != nil {
			logging.For(ctx, s.logger).Warn().Err(err).Str("user_id", user.ID).Msg("failed to update last login")
		}
	}

	row, err := s.tables.FindRowByID(ctx, models.TableUser, user.ID)
	if err != nil {
		logging.For(ctx, s.logger).Warn().Err(err).Str("user_id", user.ID).Msg("user row not found for last login")
		return
	}
	sheetUser, err := models.UserFromRow(row)
	if err != nil {
		logging.For(ctx, s.logger).Warn().Err(err).Str("user_id", user.ID).Msg("user row unreadable")
		return
	}
	sheetUser.LastLogin = &at
	if err := s.store.UpdateRow(ctx, models.TableUser, row.Index, sheetUser.Values()); err != nil {
		logging.For(ctx, s.logger).Warn().Err(err).Str("user_id", user.ID).Msg("last login update failed, queued for retry")
		s.enqueue(ctx, models.TaskUpdateRowID, models.TableUser, user.ID, sheetUser.Values())
	}
}

func (s *AuthService) enqueue(ctx context.Context, taskType, table, rowID string, values []interface{}) {
	if s.queue == nil {
		return
	}
	payload, err := models.EncodeCells(values)
	if err != nil {
		logging.For(ctx, s.logger).Error().Err(err).Msg("failed to encode bookkeeping task")
		return
	}
	task := models.SyncTask{TaskType: taskType, Table: table, RowID: rowID, Payload: payload, Status: models.TaskPending}
	if err := s.queue.Enqueue(context.WithoutCancel(ctx), task); err != nil {
		logging.For(ctx, s.logger).Error().Err(err).Str("table", table).Str("row_id", rowID).Msg("failed to enqueue bookkeeping task")
	}
}

func (s *AuthService) rollback(tx domain.UserTx, step string) {
	metrics.IncSagaRollback(step)
	if err := tx.Rollback(); err != nil {
		s.logger.Error().Err(err).Str("step", step).Msg("relational rollback failed")
	}
}

// tombstone clears a row appended by a registration that did not complete.
func (s *AuthService) tombstone(ctx context.Context, table, id string) {
	if err := s.tables.DeleteByID(context.WithoutCancel(ctx), table, id); err != nil {
		logging.For(ctx, s.logger).Error().Err(err).Str("table", table).Str("id", id).Msg("failed to clear row of failed registration")
	}
}

func (s *AuthService) publishUser(user models.User) {
	if s.events == nil {
		return
	}
	payload := events.UserEventPayload{UserID: user.ID, Email: user.Email, At: user.CreatedAt}
	if err := s.events.PublishJSON(events.EventUserRegistered, payload); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("publish event error")
	}
}

func syncFailure(step string, err error) error {
	return domain.Errorf(domain.ErrSyncFailure, "registration rolled back: %s: %v", step, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, strings.ToLower(fe.Field())+" is required")
		case "email":
			parts = append(parts, "email is not a valid address")
		case "min":
			parts = append(parts, strings.ToLower(fe.Field())+" must be at least "+fe.Param()+" characters")
		default:
			parts = append(parts, strings.ToLower(fe.Field())+" is invalid")
		}
	}
	return strings.Join(parts, ", ")
}
