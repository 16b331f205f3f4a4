// Package crm talks to the GoHighLevel contact API. Every call here is
// advisory: callers treat failures as log-and-continue.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client is the engine's view of the CRM: create a contact at signup, tag a
// contact when entitlements change. No return value beyond the contact id is
// ever consulted.
type Client interface {
	CreateContact(ctx context.Context, name, email, phone string) (string, error)
	TagContact(ctx context.Context, contactRef, tag string) error
}

const defaultBaseURL = "https://services.leadconnectorhq.com"

// GHLClient implements Client against the LeadConnector REST API.
type GHLClient struct {
	apiKey     string
	locationID string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewGHLClient(apiKey, locationID string, logger *zap.Logger) *GHLClient {
	return &GHLClient{
		apiKey:     apiKey,
		locationID: locationID,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (c *GHLClient) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error encoding CRM payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error building CRM request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Version", "2021-07-28")
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func (c *GHLClient) CreateContact(ctx context.Context, name, email, phone string) (string, error) {
	firstName := name
	lastName := ""
	if parts := strings.Fields(name); len(parts) > 1 {
		firstName = parts[0]
		lastName = strings.Join(parts[1:], " ")
	}

	resp, err := c.do(ctx, http.MethodPost, "/contacts/", map[string]string{
		"firstName":  firstName,
		"lastName":   lastName,
		"email":      email,
		"phone":      phone,
		"locationId": c.locationID,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("CRM contact create returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Contact struct {
			ID string `json:"id"`
		} `json:"contact"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("error decoding CRM response: %w", err)
	}
	return decoded.Contact.ID, nil
}

func (c *GHLClient) TagContact(ctx context.Context, contactRef, tag string) error {
	resp, err := c.do(ctx, http.MethodPost, "/contacts/"+contactRef+"/tags", map[string][]string{
		"tags": {tag},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("CRM tag returned status %d", resp.StatusCode)
	}
	return nil
}

// Noop satisfies Client when no CRM is configured.
type Noop struct{}

func (Noop) CreateContact(ctx context.Context, name, email, phone string) (string, error) {
	return "", nil
}

func (Noop) TagContact(ctx context.Context, contactRef, tag string) error {
	return nil
}
