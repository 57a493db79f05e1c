// Package cve implements the CVE extraction and enrichment stage:
// regex extraction of CVE IDs from article text, NVD lookup for
// scoring/CPE data, and CISA KEV cross-referencing.
package cve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/greywatch/sentinel/internal/ratelimit"
)

const (
	nvdBaseURL         = "https://services.nvd.nist.gov/rest/json/cves/2.0"
	nvdCallTimeout     = 15 * time.Second
	nvdWindow          = 30 * time.Second
	nvdCapacityWithKey = 50
	nvdCapacityNoKey   = 5
	descriptionCap     = 2000
)

type nvdResponse struct {
	Vulnerabilities []struct {
		CVE nvdCVE `json:"cve"`
	} `json:"vulnerabilities"`
}

type nvdCVE struct {
	ID           string `json:"id"`
	Published    string `json:"published"`
	Descriptions []struct {
		Lang  string `json:"lang"`
		Value string `json:"value"`
	} `json:"descriptions"`
	Metrics struct {
		CvssMetricV31 []cvssMetric `json:"cvssMetricV31"`
		CvssMetricV30 []cvssMetric `json:"cvssMetricV30"`
		CvssMetricV2  []cvssMetric `json:"cvssMetricV2"`
	} `json:"metrics"`
	Configurations []struct {
		Nodes []struct {
			CpeMatch []struct {
				Vulnerable bool   `json:"vulnerable"`
				Criteria   string `json:"criteria"`
			} `json:"cpeMatch"`
		} `json:"nodes"`
	} `json:"configurations"`
}

type cvssMetric struct {
	CvssData struct {
		BaseScore    float64 `json:"baseScore"`
		BaseSeverity string  `json:"baseSeverity"`
	} `json:"cvssData"`
}

// NVDRecord is the enrichment data this client retrieves for one CVE.
type NVDRecord struct {
	CVSSScore     *float64
	Severity      *string
	Description   *string
	CPEMatches    []string
	PublishedDate *time.Time
}

// NVDClient fetches CVE enrichment from the NVD REST API, rate-limited
// to the documented per-key/no-key sliding-window quotas.
type NVDClient struct {
	client  *http.Client
	apiKey  string
	limiter *ratelimit.SlidingWindow
}

func NewNVDClient(apiKey string) *NVDClient {
	capacity := nvdCapacityNoKey
	if apiKey != "" {
		capacity = nvdCapacityWithKey
	}
	return &NVDClient{
		client:  &http.Client{Timeout: nvdCallTimeout},
		apiKey:  apiKey,
		limiter: ratelimit.New(nvdWindow, capacity, 500*time.Millisecond),
	}
}

// Lookup fetches a single CVE by ID, respecting the client's sliding
// window rate limit.
func (n *NVDClient) Lookup(ctx context.Context, cveID string) (NVDRecord, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return NVDRecord{}, err
	}

	url := fmt.Sprintf("%s?cveId=%s", nvdBaseURL, cveID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NVDRecord{}, err
	}
	if n.apiKey != "" {
		req.Header.Set("apiKey", n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return NVDRecord{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return NVDRecord{}, fmt.Errorf("cve: NVD rate limit exceeded for %s", cveID)
	}
	if resp.StatusCode != http.StatusOK {
		return NVDRecord{}, fmt.Errorf("cve: NVD returned status %d for %s", resp.StatusCode, cveID)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NVDRecord{}, err
	}

	var parsed nvdResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return NVDRecord{}, fmt.Errorf("cve: parsing NVD response for %s: %w", cveID, err)
	}
	if len(parsed.Vulnerabilities) == 0 {
		return NVDRecord{}, fmt.Errorf("cve: %s not found in NVD", cveID)
	}

	return toRecord(parsed.Vulnerabilities[0].CVE), nil
}

func toRecord(v nvdCVE) NVDRecord {
	rec := NVDRecord{}

	for _, d := range v.Descriptions {
		if d.Lang == "en" {
			desc := d.Value
			if len(desc) > descriptionCap {
				desc = desc[:descriptionCap]
			}
			rec.Description = &desc
			break
		}
	}

	// Selection order: v3.1 → v3.0 → v2.
	switch {
	case len(v.Metrics.CvssMetricV31) > 0:
		m := v.Metrics.CvssMetricV31[0].CvssData
		rec.CVSSScore = &m.BaseScore
		rec.Severity = &m.BaseSeverity
	case len(v.Metrics.CvssMetricV30) > 0:
		m := v.Metrics.CvssMetricV30[0].CvssData
		rec.CVSSScore = &m.BaseScore
		rec.Severity = &m.BaseSeverity
	case len(v.Metrics.CvssMetricV2) > 0:
		m := v.Metrics.CvssMetricV2[0].CvssData
		rec.CVSSScore = &m.BaseScore
		rec.Severity = &m.BaseSeverity
	}

	var cpes []string
	for _, cfg := range v.Configurations {
		for _, node := range cfg.Nodes {
			for _, m := range node.CpeMatch {
				if m.Vulnerable {
					cpes = append(cpes, m.Criteria)
				}
			}
		}
	}
	rec.CPEMatches = cpes

	if t, err := time.Parse(time.RFC3339, v.Published); err == nil {
		rec.PublishedDate = &t
	}

	return rec
}
