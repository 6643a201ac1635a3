// Package organization reads organizations from the SuperApp API and tracks
// which one the user has selected.
package organization

import (
	"context"
	"errors"
	"net/url"
	"sync"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/gateway"
)

// ListPath is the organizations collection, relative to the API base URL.
const ListPath = "/api/v1/organizations"

// Service implements tiqology.OrganizationService.
type Service struct {
	gw *gateway.Gateway

	mu       sync.RWMutex
	selected *tiqology.Organization
}

// compile-time check
var _ tiqology.OrganizationService = (*Service)(nil)

// New creates an organization service over gw.
func New(gw *gateway.Gateway) *Service {
	return &Service{gw: gw}
}

// List returns every organization visible to the current user.
func (s *Service) List(ctx context.Context) ([]tiqology.Organization, error) {
	res, err := gateway.Request[tiqology.OrganizationsResponse](ctx, s.gw, "GET", ListPath, nil, true)
	if err != nil {
		return nil, err
	}
	if res.Organizations == nil {
		return []tiqology.Organization{}, nil
	}
	return res.Organizations, nil
}

// Get returns one organization by ID.
func (s *Service) Get(ctx context.Context, id string) (*tiqology.Organization, error) {
	if id == "" {
		return nil, tiqology.NewError(tiqology.KindValidation, errors.New("organization: empty id"))
	}
	return gateway.Request[tiqology.Organization](ctx, s.gw, "GET", ListPath+"/"+url.PathEscape(id), nil, true)
}

// Select records org as the user's current organization. Passing nil clears it.
func (s *Service) Select(org *tiqology.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if org == nil {
		s.selected = nil
		return
	}
	c := *org
	s.selected = &c
}

// Selected returns the current organization, if any.
func (s *Service) Selected() (tiqology.Organization, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return tiqology.Organization{}, false
	}
	return *s.selected, true
}
