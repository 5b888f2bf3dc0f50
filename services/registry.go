package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"fundaswipe/config"
)

// AddressRecord is the authoritative data the national address
// registry holds for one address.
type AddressRecord struct {
	YearBuilt    int
	PostalCode   string
	City         string
	Neighborhood string
	Lat          float64
	Lng          float64
}

// RegistryClient queries the PDOK Locatieserver, the public lookup
// service in front of the BAG address registry.
type RegistryClient struct {
	baseURL string
	client  *http.Client
}

func NewRegistryClient(cfg config.RegistryConfig) *RegistryClient {
	return &RegistryClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

var pointRegex = regexp.MustCompile(`POINT\(([\d.\-]+) ([\d.\-]+)\)`)

type registryResponse struct {
	Response struct {
		Docs []registryDoc `json:"docs"`
	} `json:"response"`
}

type registryDoc struct {
	Bouwjaar    json.Number `json:"bouwjaar"`
	Postcode    string      `json:"postcode"`
	Woonplaats  string      `json:"woonplaatsnaam"`
	Buurtnaam   string      `json:"buurtnaam"`
	Wijknaam    string      `json:"wijknaam"`
	CentroideLL string      `json:"centroide_ll"`
}

// Lookup resolves a free-text address query to the best-matching
// registry record, or nil when nothing matched.
func (c *RegistryClient) Lookup(ctx context.Context, query string) (*AddressRecord, error) {
	u := fmt.Sprintf("%s/free?q=%s&rows=1&fq=type:adres", c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry status %d", resp.StatusCode)
	}

	var parsed registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding registry response: %w", err)
	}
	if len(parsed.Response.Docs) == 0 {
		return nil, nil
	}

	doc := parsed.Response.Docs[0]
	record := &AddressRecord{
		PostalCode:   doc.Postcode,
		City:         doc.Woonplaats,
		Neighborhood: doc.Buurtnaam,
	}
	if record.Neighborhood == "" {
		record.Neighborhood = doc.Wijknaam
	}
	if year, err := doc.Bouwjaar.Int64(); err == nil {
		record.YearBuilt = int(year)
	}
	if m := pointRegex.FindStringSubmatch(doc.CentroideLL); m != nil {
		record.Lng, _ = strconv.ParseFloat(m[1], 64)
		record.Lat, _ = strconv.ParseFloat(m[2], 64)
	}
	return record, nil
}
