/*
Package account manages user records in the "users" collection.

PURPOSE:
  Registration, credential checks, and profile updates. Passwords are
  stored as bcrypt hashes inside the user document; profile images go
  through the media uploader and only the resulting URL is persisted.
*/
package account

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/finvault/wallet-engine/docstore"
	"github.com/finvault/wallet-engine/ledger"
	"github.com/finvault/wallet-engine/media"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// User is the public shape of a user document. The password hash never
// leaves this package.
type User struct {
	ID    string
	Name  string
	Email string
	Image string
}

// Service provides user registration, authentication, and profile updates.
type Service struct {
	store    docstore.Store
	uploader media.Uploader
}

func NewService(store docstore.Store, uploader media.Uploader) *Service {
	return &Service{store: store, uploader: uploader}
}

// Register creates a new user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, name, email, password string) (User, error) {
	if name == "" || email == "" || password == "" {
		return User{}, fmt.Errorf("%w: name, email and password are required", ledger.ErrInvalidInput)
	}

	existing, err := s.store.Query(ctx, ledger.CollectionUsers, docstore.Query{
		Filters: []docstore.Where{docstore.Eq("email", email)},
		Limit:   1,
	})
	if err != nil {
		return User{}, fmt.Errorf("%w: query users: %v", ledger.ErrStoreFailed, err)
	}
	if len(existing) > 0 {
		return User{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	id, err := s.store.Create(ctx, ledger.CollectionUsers, docstore.Doc{
		"name":         name,
		"email":        email,
		"passwordHash": string(hash),
		"image":        "",
	})
	if err != nil {
		return User{}, fmt.Errorf("%w: create user: %v", ledger.ErrStoreFailed, err)
	}
	return User{ID: id, Name: name, Email: email}, nil
}

// Authenticate checks email+password and returns the matching user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	snaps, err := s.store.Query(ctx, ledger.CollectionUsers, docstore.Query{
		Filters: []docstore.Where{docstore.Eq("email", email)},
		Limit:   1,
	})
	if err != nil {
		return User{}, fmt.Errorf("%w: query users: %v", ledger.ErrStoreFailed, err)
	}
	if len(snaps) == 0 {
		return User{}, ErrInvalidCredentials
	}

	snap := snaps[0]
	hash, _ := snap.Data["passwordHash"].(string)
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return userFromDoc(snap.ID, snap.Data), nil
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, uid string) (User, error) {
	doc, err := s.store.Get(ctx, ledger.CollectionUsers, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return User{}, ledger.ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("%w: get user: %v", ledger.ErrStoreFailed, err)
	}
	return userFromDoc(uid, doc), nil
}

// UpdateProfile merges name and/or image changes into the user document.
// A raw image file is uploaded first; only its URL is stored.
func (s *Service) UpdateProfile(ctx context.Context, uid, name string, image media.File) (User, error) {
	if _, err := s.Get(ctx, uid); err != nil {
		return User{}, err
	}

	fields := docstore.Doc{}
	if name != "" {
		fields["name"] = name
	}
	if !image.IsZero() {
		url, err := s.uploader.Upload(ctx, image, "users")
		if err != nil {
			return User{}, fmt.Errorf("%w: %v", ledger.ErrUploadFailed, err)
		}
		fields["image"] = url
	}

	if len(fields) > 0 {
		if err := s.store.Set(ctx, ledger.CollectionUsers, uid, fields); err != nil {
			return User{}, fmt.Errorf("%w: update user: %v", ledger.ErrStoreFailed, err)
		}
	}
	return s.Get(ctx, uid)
}

func userFromDoc(id string, doc docstore.Doc) User {
	name, _ := doc["name"].(string)
	email, _ := doc["email"].(string)
	image, _ := doc["image"].(string)
	return User{ID: id, Name: name, Email: email, Image: image}
}
