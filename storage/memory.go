package storage

import (
	"context"
	"fmt"
	"sync"

	"fundaswipe/models"
)

// MemoryStore is an in-process roster store used when no backend is
// configured, and by tests.
type MemoryStore struct {
	mu     sync.RWMutex
	groups map[string]*models.FamilyGroup
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{groups: make(map[string]*models.FamilyGroup)}
}

func (s *MemoryStore) GetGroup(ctx context.Context, code string) (*models.FamilyGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[code]
	if !ok {
		return nil, nil
	}
	return cloneGroup(group), nil
}

func (s *MemoryStore) CreateGroup(ctx context.Context, group *models.FamilyGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[group.Code]; exists {
		return nil
	}
	s.groups[group.Code] = cloneGroup(group)
	return nil
}

func (s *MemoryStore) UpsertMember(ctx context.Context, code string, member *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[code]
	if !ok {
		return fmt.Errorf("group %s not found", code)
	}
	if group.Members == nil {
		group.Members = make(map[string]*models.Member)
	}
	group.Members[member.Name] = cloneMember(member)
	return nil
}

func (s *MemoryStore) RemoveMember(ctx context.Context, code, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[code]
	if !ok {
		return fmt.Errorf("group %s not found", code)
	}
	delete(group.Members, name)
	return nil
}

func cloneGroup(g *models.FamilyGroup) *models.FamilyGroup {
	out := &models.FamilyGroup{
		Code:      g.Code,
		CreatedBy: g.CreatedBy,
		CreatedAt: g.CreatedAt,
		Members:   make(map[string]*models.Member, len(g.Members)),
	}
	for name, m := range g.Members {
		out.Members[name] = cloneMember(m)
	}
	return out
}

func cloneMember(m *models.Member) *models.Member {
	out := *m
	out.Favorites = append([]string(nil), m.Favorites...)
	return &out
}
