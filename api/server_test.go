package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fundaswipe/models"
	"fundaswipe/storage"
)

type stubSearcher struct {
	params   models.SearchParams
	listings []models.Listing
	err      error
}

func (s *stubSearcher) Search(ctx context.Context, params models.SearchParams) ([]models.Listing, *models.SearchRun, error) {
	s.params = params
	if s.err != nil {
		return nil, nil, s.err
	}
	run := &models.SearchRun{Params: params, ListingsFound: len(s.listings)}
	return s.listings, run, nil
}

func newTestServer(searcher Searcher) *httptest.Server {
	return httptest.NewServer(NewServer(searcher, storage.NewMemoryStore()).Handler())
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func doRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("build %s %s: %v", method, url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestSearchEndpointPassesParams(t *testing.T) {
	price := 450000
	searcher := &stubSearcher{listings: []models.Listing{
		{ID: "funda-1", Address: "Ceintuurbaan 101", Price: &price},
	}}
	ts := newTestServer(searcher)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/search?area=utrecht&transaction=huur&min_price=300000&max_pages=2")
	if err != nil {
		t.Fatalf("GET search: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Listings []models.Listing  `json:"listings"`
		Run      *models.SearchRun `json:"run"`
	}
	decodeBody(t, resp, &body)

	if len(body.Listings) != 1 || body.Listings[0].ID != "funda-1" {
		t.Fatalf("unexpected listings payload: %+v", body.Listings)
	}
	if body.Run == nil || body.Run.ListingsFound != 1 {
		t.Fatalf("unexpected run payload: %+v", body.Run)
	}
	if searcher.params.Area != "utrecht" || searcher.params.Transaction != "huur" {
		t.Errorf("area/transaction not passed through: %+v", searcher.params)
	}
	if searcher.params.MinPrice != 300000 || searcher.params.MaxPages != 2 {
		t.Errorf("numeric params not passed through: %+v", searcher.params)
	}
}

func TestSearchEndpointFailure(t *testing.T) {
	searcher := &stubSearcher{err: fmt.Errorf("relay down")}
	ts := newTestServer(searcher)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/search")
	if err != nil {
		t.Fatalf("GET search: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestFamilyLifecycle(t *testing.T) {
	ts := newTestServer(&stubSearcher{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/family", map[string]string{"name": "Alex"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		Code string `json:"code"`
	}
	decodeBody(t, resp, &created)
	if created.Code == "" {
		t.Fatal("create returned empty code")
	}

	resp = postJSON(t, ts.URL+"/api/family/"+created.Code+"/join", map[string]interface{}{
		"name":      "Sam",
		"favorites": []string{"funda-42"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doRequest(t, http.MethodPut, ts.URL+"/api/family/"+created.Code+"/members/Alex/favorites/funda-42")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add favorite: expected 200, got %d", resp.StatusCode)
	}
	var view groupView
	decodeBody(t, resp, &view)

	likers, ok := view.Matches["funda-42"]
	if !ok || len(likers) != 2 {
		t.Fatalf("expected a match on funda-42 with two likers, got %v", view.Matches)
	}
	if likers[0] != "Alex" || likers[1] != "Sam" {
		t.Errorf("likers not sorted: %v", likers)
	}
	if len(view.Members) != 2 {
		t.Errorf("expected two members, got %+v", view.Members)
	}

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/family/"+created.Code+"/members/Alex/favorites/funda-42")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove favorite: expected 200, got %d", resp.StatusCode)
	}
	view = groupView{}
	decodeBody(t, resp, &view)
	if len(view.Matches) != 0 {
		t.Errorf("expected no matches after removal, got %v", view.Matches)
	}

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/family/"+created.Code+"/members/Sam")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("leave: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/family/"+created.Code)
	decodeBody(t, resp, &view)
	if len(view.Members) != 1 || view.Members[0].Name != "Alex" {
		t.Errorf("expected Alex to remain, got %+v", view.Members)
	}
}

func TestGetUnknownGroup(t *testing.T) {
	ts := newTestServer(&stubSearcher{})
	defer ts.Close()

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/family/huis-tuin-99")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateGroupRequiresName(t *testing.T) {
	ts := newTestServer(&stubSearcher{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/family", map[string]string{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
