package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/charlesng35/shopadmin/internal/models"
	"github.com/charlesng35/shopadmin/internal/repository"
	"github.com/charlesng35/shopadmin/internal/upload"
	"github.com/charlesng35/shopadmin/pkg/crypto"
	appErrors "github.com/charlesng35/shopadmin/pkg/errors"
	"github.com/charlesng35/shopadmin/pkg/validator"
)

// ProfilePictureField is the multipart field carrying a user's avatar.
const ProfilePictureField = "profile_picture"

var (
	errInvalidAddress        = appErrors.NewFieldValidation("address", "Address must be a valid JSON string.")
	errInvalidProfilePicture = appErrors.NewFieldValidation("profile_picture", "Profile picture must be a file name.")
)

// CreateUserInput captures a new account.
type CreateUserInput struct {
	Username    string                   `json:"username" mapstructure:"username" validate:"required,min=3,max=30"`
	Name        string                   `json:"name" mapstructure:"name" validate:"required,max=100"`
	Email       string                   `json:"email" mapstructure:"email" validate:"required,email"`
	Password    string                   `json:"password" mapstructure:"password" validate:"required,min=6"`
	PhoneNumber string                   `json:"phone_number" mapstructure:"phone_number" validate:"max=15"`
	Address     RawField[models.Address] `json:"address" mapstructure:"address"`
	Role        string                   `json:"role" mapstructure:"role" validate:"omitempty,oneof=user admin"`
	Uploads     upload.Set               `json:"-" mapstructure:"-" validate:"-"`
}

// UpdateUserInput carries the fields to change. Nil pointers and absent raw fields are left
// untouched. ProfilePicture only matters as the clear sentinel; a new avatar arrives as an upload.
// Any other profile_picture value must still be a bare file name.
type UpdateUserInput struct {
	Username       *string                  `json:"username" mapstructure:"username" validate:"omitempty,min=3,max=30"`
	Name           *string                  `json:"name" mapstructure:"name" validate:"omitempty,max=100"`
	Email          *string                  `json:"email" mapstructure:"email" validate:"omitempty,email"`
	Password       *string                  `json:"password" mapstructure:"password" validate:"omitempty,min=6"`
	PhoneNumber    *string                  `json:"phone_number" mapstructure:"phone_number" validate:"omitempty,max=15"`
	Address        RawField[models.Address] `json:"address" mapstructure:"address"`
	Role           *string                  `json:"role" mapstructure:"role" validate:"omitempty,oneof=user admin"`
	ProfilePicture RawField[string]         `json:"profile_picture" mapstructure:"profile_picture"`
	Uploads        upload.Set               `json:"-" mapstructure:"-" validate:"-"`
}

// UserService manages user accounts, their avatars and the cached views of both.
type UserService struct {
	entity
	repo   repository.UserRepository
	hasher crypto.Hasher
}

// NewUserService constructs a UserService.
func NewUserService(repo repository.UserRepository, deps Dependencies) (*UserService, error) {
	if repo == nil {
		return nil, errors.New("user service: repository is required")
	}
	base, err := newEntity("user", "users", deps)
	if err != nil {
		return nil, err
	}
	base.dir = base.settings.AvatarDir

	hasher := deps.Hasher
	if hasher == nil {
		hasher = crypto.NewBcryptHasher(crypto.DefaultCost)
	}
	return &UserService{entity: base, repo: repo, hasher: hasher}, nil
}

// DefaultAvatar is the placeholder used when a user has no picture.
func (s *UserService) DefaultAvatar() string {
	return s.settings.DefaultAvatar
}

// GetByID returns one user, served from cache when possible.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, Source, error) {
	ctx = ensureContext(ctx)
	key := s.entityKey(id)

	var cached models.User
	if s.readCached(ctx, key, &cached) {
		return &cached, SourceCache, nil
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, "", translate(s.name, err)
	}
	user = sanitize(user)
	s.writeCached(ctx, key, user)
	return user, SourceRepository, nil
}

// List returns users whose username, name or email contains search, newest first.
func (s *UserService) List(ctx context.Context, search string) ([]models.User, Source, error) {
	ctx = ensureContext(ctx)
	key := s.listKey(search)

	var cached []models.User
	if s.readCached(ctx, key, &cached) {
		return cached, SourceCache, nil
	}

	users, err := s.repo.List(ctx, search)
	if err != nil {
		return nil, "", translate(s.name, err)
	}
	for i := range users {
		users[i].Password = ""
	}
	s.writeCached(ctx, key, users)
	return users, SourceRepository, nil
}

// FindByEmail loads the stored account, including its password hash.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.FindOne(ensureContext(ctx), repository.Filter{"email": models.NormalizeHandle(email)})
	if err != nil {
		return nil, translate(s.name, err)
	}
	return user, nil
}

// Create registers an account. The profile_picture upload, if any, becomes the avatar.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)
	pending := s.track(in.Uploads)
	defer pending.release(ctx)

	if err := validator.ValidateStruct(in); err != nil {
		return nil, validator.AsAppError(err)
	}

	address, _, err := in.Address.Decode()
	if err != nil {
		return nil, errInvalidAddress
	}

	avatar := s.settings.DefaultAvatar
	if file, ok := in.Uploads.Single(ProfilePictureField); ok {
		avatar = file.Filename
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Username:       in.Username,
		Name:           strings.TrimSpace(in.Name),
		Email:          in.Email,
		Password:       hash,
		PhoneNumber:    strings.TrimSpace(in.PhoneNumber),
		Address:        datatypes.NewJSONType(address),
		ProfilePicture: avatar,
		Role:           in.Role,
	}
	user.Normalize()

	if err := s.repo.Insert(ctx, user); err != nil {
		return nil, translate(s.name, err)
	}
	pending.keep(avatar)

	s.invalidate(ctx, user.ID)
	s.logWrite(ctx, "user created", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return sanitize(user), nil
}

// Update applies in to the user. A new avatar replaces the old one, whose blob is removed once
// the change is stored.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)
	pending := s.track(in.Uploads)
	defer pending.release(ctx)

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translate(s.name, err)
	}

	if err := validator.ValidateStruct(in); err != nil {
		return nil, validator.AsAppError(err)
	}
	if name, ok := stringValue(in.ProfilePicture); ok {
		if name = strings.TrimSpace(name); name != "" && !plainFilename(name) {
			return nil, errInvalidProfilePicture
		}
	}

	fields := make(map[string]any)
	if in.Username != nil {
		fields["username"] = models.NormalizeHandle(*in.Username)
	}
	if name := trimPtr(in.Name); name != nil {
		fields["name"] = *name
	}
	if in.Email != nil {
		fields["email"] = models.NormalizeHandle(*in.Email)
	}
	if phone := trimPtr(in.PhoneNumber); phone != nil {
		fields["phone_number"] = *phone
	}
	if in.Role != nil {
		fields["role"] = strings.TrimSpace(*in.Role)
	}

	if in.Address.IsSet() {
		address, _, err := in.Address.Decode()
		if err != nil {
			return nil, errInvalidAddress
		}
		fields["address"] = datatypes.NewJSONType(address)
	}

	if in.Password != nil && *in.Password != "" && !s.hasher.Verify(current.Password, *in.Password) {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("user service: hash password: %w", err)
		}
		fields["password"] = hash
	}

	var replaced string
	if file, ok := in.Uploads.Single(ProfilePictureField); ok {
		fields["profile_picture"] = file.Filename
		replaced = current.ProfilePicture
	} else if in.ProfilePicture.IsNull() {
		fields["profile_picture"] = s.settings.DefaultAvatar
		replaced = current.ProfilePicture
	}

	updated, err := s.repo.UpdateByID(ctx, id, fields)
	if err != nil {
		return nil, translate(s.name, err)
	}
	pending.keep(updated.ProfilePicture)

	if replaced != updated.ProfilePicture {
		s.deleteImages(ctx, s.settings.DefaultAvatar, replaced)
	}
	s.invalidate(ctx, id)
	s.logWrite(ctx, "user updated", zap.String("user_id", id), zap.Int("fields", len(fields)))
	return sanitize(updated), nil
}

// Delete removes the user and their avatar.
func (s *UserService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	current, err := s.repo.FindByID(ctx, id, "profile_picture")
	if err != nil {
		return translate(s.name, err)
	}

	s.deleteImages(ctx, s.settings.DefaultAvatar, current.ProfilePicture)
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return translate(s.name, err)
	}

	s.invalidate(ctx, id)
	s.logWrite(ctx, "user deleted", zap.String("user_id", id))
	return nil
}

// ReferencedImages returns every avatar filename stored on a user record.
func (s *UserService) ReferencedImages(ctx context.Context) ([]string, error) {
	users, err := s.repo.List(ensureContext(ctx), "")
	if err != nil {
		return nil, translate(s.name, err)
	}
	names := make([]string, 0, len(users))
	for _, user := range users {
		names = append(names, user.ProfilePicture)
	}
	return normaliseNames(names), nil
}

func sanitize(user *models.User) *models.User {
	if user == nil {
		return nil
	}
	cpy := *user
	cpy.Password = ""
	return &cpy
}
