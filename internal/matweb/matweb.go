// Package matweb is a client for the MaterialsWeb REST interface, used
// to pull reference materials data (energies, relaxed structures) next
// to a measurement campaign. The derivation core never imports it.
package matweb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matstage/matstage/internal/ctxlog"
)

// DefaultEndpoint is the public MaterialsWeb REST root.
const DefaultEndpoint = "https://www.materialsweb.org/rest"

// RestError reports a query the API rejected or a transport failure.
type RestError struct {
	Message string
}

func (e *RestError) Error() string { return "materialsweb: " + e.Message }

// Client talks to the MaterialsWeb REST interface. Every request carries
// the API key in the x-api-key header.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

// New builds a client for the given API key. An empty endpoint selects
// DefaultEndpoint.
func New(apiKey, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// envelope is the wire format every MaterialsWeb response arrives in.
type envelope struct {
	ValidResponse bool            `json:"valid_response"`
	Response      json.RawMessage `json:"response"`
	Error         string          `json:"error"`
	Warning       string          `json:"warning"`
}

// GetData fetches materials documents for a chemical system (Li-Fe-O),
// formula (Fe2O3), or material ID (mp-1234). dataType is "vasp" or
// "exp"; empty selects "vasp". prop, when set, narrows the result to one
// property. The API always returns a list of documents.
func (c *Client) GetData(ctx context.Context, chemsysFormulaID, dataType, prop string) ([]map[string]any, error) {
	if dataType == "" {
		dataType = "vasp"
	}
	subURL := fmt.Sprintf("/materials/%s/%s", url.PathEscape(chemsysFormulaID), url.PathEscape(dataType))
	if prop != "" {
		subURL += "/" + url.PathEscape(prop)
	}
	raw, err := c.request(ctx, http.MethodGet, subURL, nil)
	if err != nil {
		return nil, err
	}
	var docs []map[string]any
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, &RestError{Message: fmt.Sprintf("decoding materials documents: %v", err)}
	}
	return docs, nil
}

// GetStructureByMaterialID returns the structure document for a material
// ID: the final (relaxed) structure by default, the initial one when
// final is false. The document comes back as raw JSON for the caller to
// persist or hand to a parser.
func (c *Client) GetStructureByMaterialID(ctx context.Context, materialID string, final bool) (json.RawMessage, error) {
	prop := "final_structure"
	if !final {
		prop = "initial_structure"
	}
	docs, err := c.GetData(ctx, materialID, "", "")
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, &RestError{Message: fmt.Sprintf("no document for material %s", materialID)}
	}
	v, ok := docs[0][prop]
	if !ok {
		return nil, &RestError{Message: fmt.Sprintf("document for %s has no %s", materialID, prop)}
	}
	// The API serializes structures as a JSON string inside the document.
	if s, ok := v.(string); ok {
		return json.RawMessage(s), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &RestError{Message: fmt.Sprintf("encoding structure document: %v", err)}
	}
	return raw, nil
}

// Query posts a criteria query: criteria is a JSON document in the API's
// query language, properties lists the fields to return per document.
func (c *Client) Query(ctx context.Context, criteria string, properties []string) ([]map[string]any, error) {
	props, err := json.Marshal(properties)
	if err != nil {
		return nil, fmt.Errorf("encoding properties: %w", err)
	}
	form := url.Values{}
	form.Set("criteria", criteria)
	form.Set("properties", string(props))
	raw, err := c.request(ctx, http.MethodPost, "/query", form)
	if err != nil {
		return nil, err
	}
	var docs []map[string]any
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, &RestError{Message: fmt.Sprintf("decoding query documents: %v", err)}
	}
	return docs, nil
}

// request performs one API call and unwraps the response envelope. The
// API reports query problems inside a decodable envelope with status
// 400, so both 200 and 400 bodies are decoded; anything else is a
// transport-level failure.
func (c *Client) request(ctx context.Context, method, subURL string, form url.Values) (json.RawMessage, error) {
	log := ctxlog.FromContext(ctx)
	var (
		req *http.Request
		err error
	)
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+subURL, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+subURL, nil)
		if err == nil && len(form) > 0 {
			req.URL.RawQuery = form.Encode()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RestError{Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RestError{Message: fmt.Sprintf("reading response: %v", err)}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return nil, &RestError{Message: fmt.Sprintf("query returned status %d", resp.StatusCode)}
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &RestError{Message: fmt.Sprintf("decoding response: %v. content: %s", err, body)}
	}
	if !env.ValidResponse {
		return nil, &RestError{Message: env.Error}
	}
	if env.Warning != "" {
		log.Warn("MaterialsWeb returned a warning.", "warning", env.Warning)
	}
	return env.Response, nil
}
