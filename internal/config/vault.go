package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
)

const vaultTimeout = 30 * time.Second

// vaultRef is a parsed ${VAULT:path#key} reference.
type vaultRef struct {
	Path string
	Key  string
}

func parseVaultRef(ref string) (vaultRef, error) {
	path, key, ok := strings.Cut(ref, "#")
	if !ok || path == "" || key == "" {
		return vaultRef{}, fmt.Errorf("invalid Vault reference %q: expected path#key", ref)
	}
	return vaultRef{Path: strings.Trim(path, "/"), Key: key}, nil
}

// newVaultClient builds a client from VAULT_ADDR, VAULT_TOKEN and the
// optional VAULT_NAMESPACE.
func newVaultClient() (*api.Client, error) {
	addr, token := os.Getenv("VAULT_ADDR"), os.Getenv("VAULT_TOKEN")
	switch {
	case addr == "":
		return nil, errors.New("VAULT_ADDR is not set")
	case token == "":
		return nil, errors.New("VAULT_TOKEN is not set")
	}

	cfg := api.DefaultConfig()
	cfg.Address = addr
	cfg.Timeout = vaultTimeout
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating Vault client: %w", err)
	}
	client.SetToken(token)
	if ns := os.Getenv("VAULT_NAMESPACE"); ns != "" {
		client.SetNamespace(ns)
	}
	return client, nil
}

// resolveVault returns one string field of a KV v1 or v2 secret.
func resolveVault(ref string) (string, error) {
	r, err := parseVaultRef(ref)
	if err != nil {
		return "", err
	}
	client, err := newVaultClient()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), vaultTimeout)
	defer cancel()

	secret, err := client.Logical().ReadWithContext(ctx, r.Path)
	if err != nil {
		return "", fmt.Errorf("reading Vault secret %s: %w", r.Path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("Vault secret %s does not exist", r.Path)
	}
	return vaultField(secret.Data, r)
}

func vaultField(data map[string]any, r vaultRef) (string, error) {
	// KV v2 wraps the fields in data.data next to a metadata block.
	if inner, ok := data["data"].(map[string]any); ok {
		if _, versioned := data["metadata"]; versioned || len(data) == 1 {
			data = inner
		}
	}
	switch v := data[r.Key].(type) {
	case string:
		return v, nil
	case nil:
		return "", fmt.Errorf("Vault secret %s has no field %q", r.Path, r.Key)
	default:
		return "", fmt.Errorf("Vault secret %s field %q is a %T, not a string", r.Path, r.Key, v)
	}
}
