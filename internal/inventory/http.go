package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/selector"
)

// HTTPClient queries a remote inventory service exposing the routes served
// by NewHandler.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the inventory at baseURL. A nil client
// gets a default one with the given timeout.
func NewHTTPClient(baseURL string, client *http.Client, timeout time.Duration) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type resourceList struct {
	ResourceIDs []string `json:"resourceIds"`
}

type errorBody struct {
	Error string `json:"error"`
}

// GetResource fetches one resource.
func (c *HTTPClient) GetResource(ctx context.Context, tenantID, resourceID string) (api.Resource, error) {
	u := fmt.Sprintf("%s/tenants/%s/resources/%s", c.baseURL, url.PathEscape(tenantID), url.PathEscape(resourceID))

	var r api.Resource
	status, err := c.get(ctx, u, &r)
	if status == http.StatusNotFound {
		return api.Resource{}, api.NewResourceNotFoundError(tenantID, resourceID)
	}
	if err != nil {
		return api.Resource{}, err
	}
	r.TenantID = tenantID
	r.ResourceID = resourceID
	return r, nil
}

// FindResourcesMatchingSelector asks the inventory to evaluate a selector.
func (c *HTTPClient) FindResourcesMatchingSelector(ctx context.Context, tenantID string, sel map[string]string, method api.SelectorMethod) ([]string, error) {
	u := fmt.Sprintf("%s/tenants/%s/resources?%s", c.baseURL, url.PathEscape(tenantID), EncodeSelectorQuery(sel, method))

	var list resourceList
	status, err := c.get(ctx, u, &list)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	slices.Sort(list.ResourceIDs)
	return list.ResourceIDs, nil
}

func (c *HTTPClient) get(ctx context.Context, u string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body errorBody
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(data))
		}
		return resp.StatusCode, fmt.Errorf("inventory returned %s: %s", resp.Status, body.Error)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode inventory response: %w", err)
	}
	return resp.StatusCode, nil
}

// EncodeSelectorQuery renders a selector as query parameters: one
// label=key=value per pair plus the method.
func EncodeSelectorQuery(sel map[string]string, method api.SelectorMethod) string {
	v := url.Values{}
	if method != "" {
		v.Set("method", string(method))
	}
	keys := make([]string, 0, len(sel))
	for k := range sel {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v.Add("label", k+"="+sel[k])
	}
	return v.Encode()
}

// DecodeSelectorQuery is the inverse of EncodeSelectorQuery.
func DecodeSelectorQuery(v url.Values) (map[string]string, api.SelectorMethod, error) {
	method, err := selector.ParseMethod(v.Get("method"))
	if err != nil {
		return nil, "", err
	}

	sel := make(map[string]string)
	for _, pair := range v["label"] {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, "", api.NewValidationError("label", fmt.Sprintf("expected key=value, got %q", pair))
		}
		sel[key] = value
	}
	return sel, method, nil
}
