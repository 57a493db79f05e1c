package cve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/greywatch/sentinel/internal/cache"
)

const (
	kevFeedURL     = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"
	kevCallTimeout = 20 * time.Second
)

type kevFeed struct {
	Vulnerabilities []struct {
		CveID                      string `json:"cveID"`
		VendorProject              string `json:"vendorProject"`
		Product                    string `json:"product"`
		DateAdded                  string `json:"dateAdded"`
		DueDate                    string `json:"dueDate"`
		KnownRansomwareCampaignUse string `json:"knownRansomwareCampaignUse"`
	} `json:"vulnerabilities"`
}

// NewKEVFetchFunc binds ctx into a cache.KEVFetchFunc closure, since the
// cache's injected fetch signature takes no context of its own.
func NewKEVFetchFunc(ctx context.Context) cache.KEVFetchFunc {
	return func() (map[string]cache.KEVEntry, error) {
		return fetchKEV(ctx)
	}
}

func fetchKEV(ctx context.Context) (map[string]cache.KEVEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, kevFeedURL, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: kevCallTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cve: KEV feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed kevFeed
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("cve: parsing KEV feed: %w", err)
	}

	out := make(map[string]cache.KEVEntry, len(parsed.Vulnerabilities))
	for _, v := range parsed.Vulnerabilities {
		entry := cache.KEVEntry{
			Vendor:        v.VendorProject,
			Product:       v.Product,
			RansomwareUse: v.KnownRansomwareCampaignUse == "Known",
		}
		if t, err := time.Parse("2006-01-02", v.DateAdded); err == nil {
			entry.DateAdded = t
		}
		if t, err := time.Parse("2006-01-02", v.DueDate); err == nil {
			entry.DueDate = &t
		}
		out[v.CveID] = entry
	}
	return out, nil
}
