package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fundaswipe/config"
	"fundaswipe/models"
)

// FirebaseStore keeps family rosters in a Firebase Realtime Database
// over its REST interface. Each member is written under its own path,
// families/<code>/members/<name>, so two phones updating different
// members never clobber each other.
type FirebaseStore struct {
	baseURL string
	auth    string
	client  *http.Client
}

func NewFirebaseStore(cfg config.SyncConfig) *FirebaseStore {
	return &FirebaseStore{
		baseURL: strings.TrimRight(cfg.FirebaseURL, "/"),
		auth:    cfg.FirebaseAuth,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// sanitizeKey strips the characters Firebase forbids in path segments.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '#', '$', '[', ']', '/':
			return -1
		}
		return r
	}, key)
}

func (s *FirebaseStore) pathURL(segments ...string) string {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		parts[i] = sanitizeKey(seg)
	}
	u := s.baseURL + "/" + strings.Join(parts, "/") + ".json"
	if s.auth != "" {
		u += "?auth=" + s.auth
	}
	return u
}

func (s *FirebaseStore) do(ctx context.Context, method, url string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("firebase error %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (s *FirebaseStore) GetGroup(ctx context.Context, code string) (*models.FamilyGroup, error) {
	var group *models.FamilyGroup
	if err := s.do(ctx, http.MethodGet, s.pathURL("families", code), nil, &group); err != nil {
		return nil, fmt.Errorf("fetching group %s: %w", code, err)
	}
	if group == nil {
		return nil, nil
	}
	group.Code = code
	return group, nil
}

func (s *FirebaseStore) CreateGroup(ctx context.Context, group *models.FamilyGroup) error {
	if err := s.do(ctx, http.MethodPut, s.pathURL("families", group.Code), group, nil); err != nil {
		return fmt.Errorf("creating group %s: %w", group.Code, err)
	}
	return nil
}

func (s *FirebaseStore) UpsertMember(ctx context.Context, code string, member *models.Member) error {
	url := s.pathURL("families", code, "members", member.Name)
	if err := s.do(ctx, http.MethodPut, url, member, nil); err != nil {
		return fmt.Errorf("writing member %s/%s: %w", code, member.Name, err)
	}
	return nil
}

func (s *FirebaseStore) RemoveMember(ctx context.Context, code, name string) error {
	url := s.pathURL("families", code, "members", name)
	if err := s.do(ctx, http.MethodDelete, url, nil, nil); err != nil {
		return fmt.Errorf("removing member %s/%s: %w", code, name, err)
	}
	return nil
}
