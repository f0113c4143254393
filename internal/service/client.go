package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/repository"
)

// ClientInput is the writable part of a client.
type ClientInput struct {
	Name  string `json:"name" validate:"required,min=10,max=100"`
	Email string `json:"email" validate:"required,email,max=191"`
	Phone string `json:"phone" validate:"required,min=8,max=40"`
}

// ClientService manages the client directory.
type ClientService struct {
	clients *repository.ClientRepo
	log     *zap.Logger
}

// NewClientService creates a ClientService.
func NewClientService(clients *repository.ClientRepo, log *zap.Logger) *ClientService {
	return &ClientService{clients: clients, log: log}
}

// Create validates and stores a client. The email is lower-cased.
func (s *ClientService) Create(ctx context.Context, in ClientInput) (*model.Client, error) {
	c, err := clientFrom(in)
	if err != nil {
		return nil, err
	}
	if err := s.clients.Create(ctx, c); err != nil {
		return nil, classify(ctx, s.log, "create client", err)
	}
	return c, nil
}

// Get returns one client.
func (s *ClientService) Get(ctx context.Context, id uint64) (*model.Client, error) {
	c, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, classify(ctx, s.log, "get client", err)
	}
	return c, nil
}

// List returns every client.
func (s *ClientService) List(ctx context.Context) ([]model.Client, error) {
	out, err := s.clients.List(ctx)
	if err != nil {
		return nil, classify(ctx, s.log, "list clients", err)
	}
	return out, nil
}

// Update rewrites a client's contact details.
func (s *ClientService) Update(ctx context.Context, id uint64, in ClientInput) (*model.Client, error) {
	c, err := clientFrom(in)
	if err != nil {
		return nil, err
	}
	c.ID = id
	if err := s.clients.Update(ctx, c); err != nil {
		return nil, classify(ctx, s.log, "update client", err)
	}
	return c, nil
}

// Delete removes a client. Clients with reservations are a model.ErrConflict.
func (s *ClientService) Delete(ctx context.Context, id uint64) error {
	return classify(ctx, s.log, "delete client", s.clients.Delete(ctx, id))
}

func clientFrom(in ClientInput) (*model.Client, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	return &model.Client{Name: in.Name, Email: in.Email, Phone: in.Phone}, nil
}
