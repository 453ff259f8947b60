// Package secrets resolves per-client delivery credentials.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"newsdesk/types"
)

// Credentials are the key/value pairs stored in a client's secret
type Credentials map[string]string

// Require fails with a fatal error naming every missing or blank key
func (c Credentials) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if strings.TrimSpace(c[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return types.Fatal(fmt.Errorf("credentials missing %s", strings.Join(missing, ", ")))
	}
	return nil
}

// Store looks up credentials by secret reference
type Store interface {
	Get(ctx context.Context, ref string) (Credentials, error)
}

// Static serves credentials from memory, keyed by secret reference
type Static map[string]Credentials

func (s Static) Get(ctx context.Context, ref string) (Credentials, error) {
	c, ok := s[ref]
	if !ok {
		return nil, fmt.Errorf("secret %q: %w", ref, types.ErrSecretNotFound)
	}
	out := make(Credentials, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out, nil
}

// parse decodes a JSON object secret. Non-string values are kept in their
// JSON form so nested documents (service account keys) survive intact.
func parse(raw []byte) (Credentials, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	creds := make(Credentials, len(doc))
	for _, k := range keys {
		v := doc[k]
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			creds[k] = s
			continue
		}
		creds[k] = string(v)
	}
	return creds, nil
}
