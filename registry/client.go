// Package registry is a client for the model-registry service. The registry
// itself is an external collaborator; this package only talks to its REST API.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound signals that the requested model, alias, or version does not exist.
var ErrNotFound = errors.New("registry: not found")

// ModelVersion describes one registered version of a model.
type ModelVersion struct {
	Name      string             `json:"name"`
	Version   string             `json:"version"`
	Stage     string             `json:"stage,omitempty"`
	Aliases   []string           `json:"aliases,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	CreatedAt time.Time          `json:"created_at,omitempty"`
}

// Client talks to a model registry over HTTP. Version metadata is immutable
// once created, so per-version lookups go through a small LRU; alias and
// stage pointers are mutable and always fetched fresh.
type Client struct {
	baseURL    string
	httpClient *http.Client
	versions   *lru.Cache[string, ModelVersion]
}

// NewClient constructs a registry client. All calls are bounded by timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	versions, _ := lru.New[string, ModelVersion](128)
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		versions:   versions,
	}
}

// GetVersionByAlias resolves a mutable alias pointer to a concrete version.
func (c *Client) GetVersionByAlias(ctx context.Context, name, alias string) (ModelVersion, error) {
	endpoint := c.modelURL(name, "aliases", alias)
	var out ModelVersion
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return ModelVersion{}, fmt.Errorf("alias %s@%s: %w", name, alias, err)
	}
	c.versions.Add(versionKey(out.Name, out.Version), out)
	return out, nil
}

// GetLatestVersionForStage resolves the deprecated stage pointer.
func (c *Client) GetLatestVersionForStage(ctx context.Context, name, stage string) (ModelVersion, error) {
	endpoint := c.modelURL(name, "stages", stage)
	var out ModelVersion
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return ModelVersion{}, fmt.Errorf("stage %s/%s: %w", name, stage, err)
	}
	c.versions.Add(versionKey(out.Name, out.Version), out)
	return out, nil
}

// GetModelVersion fetches metadata for a concrete version.
func (c *Client) GetModelVersion(ctx context.Context, name, version string) (ModelVersion, error) {
	if cached, ok := c.versions.Get(versionKey(name, version)); ok {
		return cached, nil
	}
	endpoint := c.modelURL(name, "versions", version)
	var out ModelVersion
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return ModelVersion{}, fmt.Errorf("version %s/%s: %w", name, version, err)
	}
	c.versions.Add(versionKey(name, version), out)
	return out, nil
}

// DownloadArtifactByAlias fetches the artifact currently pointed at by alias.
func (c *Client) DownloadArtifactByAlias(ctx context.Context, name, alias string) ([]byte, error) {
	return c.download(ctx, c.modelURL(name, "aliases", alias)+"/artifact", name, alias)
}

// DownloadArtifactByStage fetches the artifact for the latest version in stage.
func (c *Client) DownloadArtifactByStage(ctx context.Context, name, stage string) ([]byte, error) {
	return c.download(ctx, c.modelURL(name, "stages", stage)+"/artifact", name, stage)
}

// DownloadArtifact fetches the raw model artifact for a version.
func (c *Client) DownloadArtifact(ctx context.Context, name, version string) ([]byte, error) {
	return c.download(ctx, c.modelURL(name, "versions", version)+"/artifact", name, version)
}

func (c *Client) download(ctx context.Context, endpoint, name, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artifact %s/%s: %w", name, key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("artifact %s/%s: %w", name, key, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artifact %s/%s: %s", name, key, respError(resp))
	}
	return io.ReadAll(resp.Body)
}

// SetAlias points alias at version, moving it from any previous version.
func (c *Client) SetAlias(ctx context.Context, name, alias, version string) error {
	endpoint := c.modelURL(name, "aliases", alias)
	payload := map[string]string{"version": version}
	return c.postJSON(ctx, endpoint, payload, nil)
}

// TransitionStage moves a version into the given deprecated stage.
func (c *Client) TransitionStage(ctx context.Context, name, version, stage string) error {
	endpoint := c.modelURL(name, "versions", version) + "/stage"
	payload := map[string]string{"stage": stage}
	return c.postJSON(ctx, endpoint, payload, nil)
}

// CreateVersion registers a new version with its artifact and training metrics.
// The registry assigns the version number.
func (c *Client) CreateVersion(ctx context.Context, name string, artifact []byte, metrics map[string]float64) (ModelVersion, error) {
	endpoint := c.baseURL + "/api/2.0/registry/models/" + url.PathEscape(name) + "/versions"
	payload := struct {
		Artifact json.RawMessage    `json:"artifact"`
		Metrics  map[string]float64 `json:"metrics,omitempty"`
	}{Artifact: artifact, Metrics: metrics}

	var out ModelVersion
	if err := c.postJSON(ctx, endpoint, payload, &out); err != nil {
		return ModelVersion{}, fmt.Errorf("create version of %s: %w", name, err)
	}
	return out, nil
}

func (c *Client) modelURL(name, kind, key string) string {
	return c.baseURL + "/api/2.0/registry/models/" + url.PathEscape(name) +
		"/" + kind + "/" + url.PathEscape(key)
}

func versionKey(name, version string) string {
	return name + "@" + version
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return errors.New(respError(resp))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.New(respError(resp))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func respError(resp *http.Response) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Sprintf("registry returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Sprintf("registry returned %d", resp.StatusCode)
}
