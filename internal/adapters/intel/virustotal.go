package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/stoik/phishing-detector/internal/domain"
	"golang.org/x/sync/semaphore"
)

const DefaultVirusTotalURL = "https://www.virustotal.com"

// VirusTotalSource queries the VirusTotal v3 domain report
type VirusTotalSource struct {
	apiKey  string
	baseURL string
	client  outboundClient
	rule    VerdictRule
}

// NewVirusTotalSource creates a VirusTotal source. baseURL is only
// overridden in tests.
func NewVirusTotalSource(apiKey, baseURL string, client *http.Client, outbound *semaphore.Weighted) *VirusTotalSource {
	if baseURL == "" {
		baseURL = DefaultVirusTotalURL
	}
	return &VirusTotalSource{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  outboundClient{http: client, outbound: outbound},
		rule:    VirusTotalRule,
	}
}

func (s *VirusTotalSource) Name() string { return "virustotal" }

func (s *VirusTotalSource) Classify(detections []domain.Detection) bool {
	return s.rule.Classify(detections)
}

type vtDomainReport struct {
	Data struct {
		Attributes struct {
			LastAnalysisResults map[string]struct {
				Category   string `json:"category"`
				Result     string `json:"result"`
				EngineName string `json:"engine_name"`
			} `json:"last_analysis_results"`
		} `json:"attributes"`
	} `json:"data"`
}

// Lookup returns one detection per engine that rated the domain malicious or
// suspicious, sorted by engine name. Domains VirusTotal has never seen
// yield no detections.
func (s *VirusTotalSource) Lookup(ctx context.Context, domainName string) ([]domain.Detection, error) {
	endpoint := fmt.Sprintf("%s/api/v3/domains/%s", s.baseURL, url.PathEscape(domainName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-apikey", s.apiKey)
	req.Header.Set("Accept", "application/json")

	var detections []domain.Detection
	err = s.client.do(ctx, req, func(resp *http.Response) error {
		if resp.StatusCode == http.StatusNotFound {
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}

		var report vtDomainReport
		if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
			return fmt.Errorf("failed to decode VirusTotal report: %w", err)
		}

		for engine, result := range report.Data.Attributes.LastAnalysisResults {
			if result.Category != "malicious" && result.Category != "suspicious" {
				continue
			}
			vendor := result.EngineName
			if vendor == "" {
				vendor = engine
			}
			verdict := result.Result
			if verdict == "" || verdict == "unrated" {
				verdict = result.Category
			}
			detections = append(detections, domain.Detection{Vendor: vendor, Verdict: verdict, Category: result.Category})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// map iteration order is random, keep results reproducible
	sort.Slice(detections, func(i, j int) bool {
		if detections[i].Vendor != detections[j].Vendor {
			return detections[i].Vendor < detections[j].Vendor
		}
		return detections[i].Verdict < detections[j].Verdict
	})
	return detections, nil
}
