package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"resource-tracker/internal/auth"
	"resource-tracker/internal/model"
	"resource-tracker/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for User
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type CreateUserRequest struct {
	Name     string `json:"name" form:"name" binding:"required,max=255"`
	Username string `json:"username" form:"username" binding:"required,min=3,max=100"`
	Password string `json:"password" form:"password" binding:"required,min=6"`
	Role     string `json:"role" form:"role" binding:"required,role"`
}

type UpdateUserRequest struct {
	Name     string `json:"name" form:"name" binding:"required,max=255"`
	Username string `json:"username" form:"username" binding:"required,min=3,max=100"`
	Password string `json:"password" form:"password" binding:"omitempty,min=6"` // empty keeps the current one
	Role     string `json:"role" form:"role" binding:"required,role"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Approved  bool   `json:"approved"`
	CreatedAt string `json:"created_at"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserService defines the business logic interface for users and sessions
type UserService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, actor Actor) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*UserResponse, error)
	SessionActor(ctx context.Context, id uuid.UUID) (Actor, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*UserResponse, error)
	ApproveUser(ctx context.Context, actor Actor, id uuid.UUID) (*UserResponse, error)
	UpdateUser(ctx context.Context, actor Actor, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, actor Actor, id uuid.UUID) error
	EnsureAdmin(ctx context.Context, name, username, password string) (bool, error)
}

type userService struct {
	repo      repository.UserRepository
	roleRepo  repository.RoleRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	tokens    *auth.TokenManager
	log       *zap.Logger
}

// NewUserService creates a new UserService instance
func NewUserService(
	repo repository.UserRepository,
	roleRepo repository.RoleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	tokens *auth.TokenManager,
	log *zap.Logger,
) UserService {
	return &userService{
		repo:      repo,
		roleRepo:  roleRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		tokens:    tokens,
		log:       log,
	}
}

// ValidRoles lists the role names a user can be given.
var ValidRoles = []string{model.RoleEmployee, model.RoleManager, model.RoleAdmin}

func validateRole(role string) bool {
	for _, r := range ValidRoles {
		if role == r {
			return true
		}
	}
	return false
}

// Login checks the credentials of an approved user and issues a session
// token. Unknown users, unapproved users and wrong passwords all fail with
// ErrInvalidCredentials.
func (s *userService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Approved {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(user.ID, user.Name, user.RoleName())
	if err != nil {
		return nil, err
	}

	actor := Actor{ID: user.ID, Name: user.Name, Role: user.RoleName()}
	if err := s.auditRepo.Log(ctx, auditEntry(actor, model.ActionLogin, user.ID.String(), user.Username, map[string]string{
		"message": "login successful",
	})); err != nil {
		return nil, fmt.Errorf("failed to write audit log: %w", err)
	}

	return &LoginResponse{Token: token, ExpiresAt: expires, User: *mapUserToResponse(user)}, nil
}

func (s *userService) Logout(ctx context.Context, actor Actor) error {
	return s.auditRepo.Log(ctx, auditEntry(actor, model.ActionLogout, actor.ID.String(), actor.Name, map[string]string{
		"message": "logout",
	}))
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return mapUserToResponse(user), nil
}

// SessionActor loads the current identity behind a session token. Removed
// and unapproved users fail with ErrSessionRevoked.
func (s *userService) SessionActor(ctx context.Context, id uuid.UUID) (Actor, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return Actor{}, ErrSessionRevoked
		}
		return Actor{}, err
	}
	if !user.Approved {
		return Actor{}, ErrSessionRevoked
	}
	return Actor{ID: user.ID, Name: user.Name, Role: user.RoleName()}, nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	users, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapUserToResponse(&users[i]))
	}
	return responses, total, nil
}

// CreateUser adds a user. Users created by an admin are approved at once;
// users created by a manager wait for an admin. Managers cannot create admins.
func (s *userService) CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*UserResponse, error) {
	if !validateRole(req.Role) {
		return nil, ErrInvalidRole
	}
	if req.Role == model.RoleAdmin && !actor.IsAdmin() {
		return nil, ErrRoleNotAllowed
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		Name:     strings.TrimSpace(req.Name),
		Username: strings.TrimSpace(req.Username),
		Password: string(hashedPassword),
		Approved: actor.IsAdmin(),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetByUsername(txCtx, user.Username); err == nil {
			return ErrUsernameTaken
		}
		role, err := s.roleRepo.FindByName(txCtx, req.Role)
		if err != nil {
			return fmt.Errorf("failed to load role '%s': %w", req.Role, err)
		}
		user.RoleID = role.ID

		if err := s.repo.Create(txCtx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		user.Role = role

		audit := auditEntry(actor, model.ActionCreateUser, user.ID.String(), user.Username, map[string]interface{}{
			"role":     req.Role,
			"approved": user.Approved,
		})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return mapUserToResponse(user), nil
}

func (s *userService) ApproveUser(ctx context.Context, actor Actor, id uuid.UUID) (*UserResponse, error) {
	var approved *model.User
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return notFound(err)
		}
		if user.Approved {
			return ErrAlreadyApproved
		}
		if err := s.repo.SetApproved(txCtx, id); err != nil {
			return fmt.Errorf("failed to approve user: %w", notFound(err))
		}
		user.Approved = true

		audit := auditEntry(actor, model.ActionApproveUser, user.ID.String(), user.Username, nil)
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		approved = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mapUserToResponse(approved), nil
}

func (s *userService) UpdateUser(ctx context.Context, actor Actor, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error) {
	if !validateRole(req.Role) {
		return nil, ErrInvalidRole
	}

	var updated *model.User
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return notFound(err)
		}

		username := strings.TrimSpace(req.Username)
		if username != user.Username {
			if _, err := s.repo.GetByUsername(txCtx, username); err == nil {
				return ErrUsernameTaken
			}
		}

		role, err := s.roleRepo.FindByName(txCtx, req.Role)
		if err != nil {
			return fmt.Errorf("failed to load role '%s': %w", req.Role, err)
		}

		user.Name = strings.TrimSpace(req.Name)
		user.Username = username
		user.RoleID = role.ID
		user.Role = nil
		user.Password = ""
		if req.Password != "" {
			hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
			if err != nil {
				return errors.New("failed to hash password")
			}
			user.Password = string(hashed)
		}

		if err := s.repo.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		user.Role = role

		audit := auditEntry(actor, model.ActionUpdateUser, user.ID.String(), user.Username, map[string]interface{}{
			"role":             req.Role,
			"password_changed": req.Password != "",
		})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mapUserToResponse(updated), nil
}

func (s *userService) DeleteUser(ctx context.Context, actor Actor, id uuid.UUID) error {
	if id == actor.ID {
		return ErrCannotDeleteSelf
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return notFound(err)
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}

		audit := auditEntry(actor, model.ActionDeleteUser, user.ID.String(), user.Username, nil)
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
}

// EnsureAdmin creates an approved admin with the given credentials unless
// the username already exists. It reports whether a user was created.
func (s *userService) EnsureAdmin(ctx context.Context, name, username, password string) (bool, error) {
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(notFound(err), ErrNotFound) {
		return false, err
	}

	_, err := s.CreateUser(ctx, Actor{Name: "bootstrap", Role: model.RoleAdmin}, CreateUserRequest{
		Name:     name,
		Username: username,
		Password: password,
		Role:     model.RoleAdmin,
	})
	if err != nil {
		return false, err
	}
	s.log.Info("admin user created", zap.String("username", username))
	return true, nil
}

func mapUserToResponse(u *model.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Username:  u.Username,
		Role:      u.RoleName(),
		Approved:  u.Approved,
		CreatedAt: formatTime(u.CreatedAt),
	}
}
