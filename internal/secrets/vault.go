// Package secrets optionally loads source credentials from HashiCorp
// Vault, grounded on go-core/config/vault.go's SecretManager for the
// client setup and KV v2 read, but decoding infosweep's credential
// fields directly off the logical client instead of exposing Vault's
// generic map[string]interface{} envelope as the package's public
// surface.
package secrets

import (
	"fmt"

	"github.com/hashicorp/vault/api"
)

// Credentials is the subset of per-source secrets infosweep loads from
// Vault when the pipeline config has a vault block. Any field absent
// from the mount is left as its zero value so the caller falls back to
// its YAML config.
type Credentials struct {
	GistOAuthToken   string
	GithubOAuthToken string
	PastebinDevKey   string
	PostgresDSN      string
}

// Client reads infosweep's credential secret straight out of a Vault
// KV v2 mount.
type Client struct {
	logical *api.Logical
}

// NewManager opens a Vault client pointed at address, authenticated
// with token.
func NewManager(address, token string) (*Client, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	raw, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("secrets: vault client init: %w", err)
	}
	raw.SetToken(token)

	return &Client{logical: raw.Logical()}, nil
}

// LoadCredentials reads path from a KV v2 mount and decodes the known
// credential fields out of Vault's nested "data" envelope, leaving any
// key the secret doesn't carry as the corresponding zero value.
func (c *Client) LoadCredentials(path string) (Credentials, error) {
	secret, err := c.logical.Read(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("secrets: read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return Credentials{}, fmt.Errorf("secrets: no data found at %s", path)
	}
	// KV v2 nests the actual payload one level under "data" alongside a
	// metadata sibling key; KV v1 mounts would have the fields here
	// directly, but infosweep only ever talks to v2 mounts.
	inner, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return Credentials{}, fmt.Errorf("secrets: unexpected data format at %s", path)
	}

	var creds Credentials
	if v, ok := inner["GIST_OAUTH_TOKEN"].(string); ok {
		creds.GistOAuthToken = v
	}
	if v, ok := inner["GITHUB_OAUTH_TOKEN"].(string); ok {
		creds.GithubOAuthToken = v
	}
	if v, ok := inner["PASTEBIN_DEV_KEY"].(string); ok {
		creds.PastebinDevKey = v
	}
	if v, ok := inner["POSTGRES_DSN"].(string); ok {
		creds.PostgresDSN = v
	}
	return creds, nil
}
