package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultGeoloniaURL serves the japanese-addresses data set.
const DefaultGeoloniaURL = "https://japanese-addresses.geolonia.com/api"

// ErrNotFound is returned when the API has no document at an endpoint.
var ErrNotFound = errors.New("search: not found")

// GeoloniaSource reads the japanese-addresses JSON API:
//
//	GET {base}/ja.json               {"東京都": ["千代田区", ...], ...}
//	GET {base}/ja/{pref}/{city}.json [{"town": "丸の内一丁目", ...}, ...]
type GeoloniaSource struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewGeoloniaSource creates a source for baseURL; "" uses DefaultGeoloniaURL.
func NewGeoloniaSource(baseURL string, timeout time.Duration, logger *zap.Logger) *GeoloniaSource {
	if baseURL == "" {
		baseURL = DefaultGeoloniaURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GeoloniaSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type geoloniaTown struct {
	Town string `json:"town"`
}

// Prefectures preserves the order of ja.json keys, which is prefecture code order.
func (gs *GeoloniaSource) Prefectures(ctx context.Context) ([]string, error) {
	index, order, err := gs.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}
	prefs := make([]string, 0, len(order))
	for _, pref := range order {
		if _, ok := index[pref]; ok {
			prefs = append(prefs, pref)
		}
	}
	return prefs, nil
}

func (gs *GeoloniaSource) Cities(ctx context.Context, pref string) ([]string, error) {
	index, _, err := gs.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}
	return index[pref], nil
}

func (gs *GeoloniaSource) Towns(ctx context.Context, pref, city string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/ja/%s/%s.json", gs.baseURL, url.PathEscape(pref), url.PathEscape(city))
	var towns []geoloniaTown
	err := gs.getJSON(ctx, endpoint, &towns)
	if errors.Is(err, ErrNotFound) {
		// Cities without town data are valid.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(towns))
	for _, t := range towns {
		if t.Town != "" {
			names = append(names, t.Town)
		}
	}
	return names, nil
}

func (gs *GeoloniaSource) fetchIndex(ctx context.Context) (map[string][]string, []string, error) {
	var raw json.RawMessage
	if err := gs.getJSON(ctx, gs.baseURL+"/ja.json", &raw); err != nil {
		return nil, nil, err
	}
	var index map[string][]string
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, nil, fmt.Errorf("search: decode ja.json: %w", err)
	}
	order, err := objectKeys(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("search: decode ja.json keys: %w", err)
	}
	return index, order, nil
}

func (gs *GeoloniaSource) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("search: build request %s: %w", endpoint, err)
	}
	start := time.Now()
	resp, err := gs.client.Do(req)
	if err != nil {
		return fmt.Errorf("search: get %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	gs.logger.Debug("geolonia request",
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("search: get %s: %w", endpoint, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("search: get %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("search: decode %s: %w", endpoint, err)
	}
	return nil
}

// objectKeys returns the keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
