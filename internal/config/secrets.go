package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Secrets carries the account identity for both collaborators. It lives in
// its own JSON file so the YAML config can be committed while credentials
// stay out of version control.
type Secrets struct {
	LCAPIKey     string `json:"lc_api_key"`
	LCInvestorID string `json:"lc_investor_id"`
	P2PKey       string `json:"p2p_key"`
	P2PSecret    string `json:"p2p_secret"`
	P2PSID       string `json:"p2p_sid"`
}

// secretsSchema rejects incomplete secrets files before any network call is
// made. lc_investor_id may arrive as a number or a string; it is normalized
// to a string.
const secretsSchema = `{
	"type": "object",
	"required": ["lc_api_key", "lc_investor_id", "p2p_key", "p2p_secret", "p2p_sid"],
	"properties": {
		"lc_api_key":     {"type": "string", "minLength": 1},
		"lc_investor_id": {"type": ["string", "integer"]},
		"p2p_key":        {"type": "string", "minLength": 1},
		"p2p_secret":     {"type": "string", "minLength": 1},
		"p2p_sid":        {"type": "string", "minLength": 1}
	}
}`

var compiledSecretsSchema = jsonschema.MustCompileString("secrets.json", secretsSchema)

// LoadSecrets reads and validates the secrets file at path.
func LoadSecrets(path string) (*Secrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading secrets file failed (%s): %w", path, err)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing secrets file failed (%s): %w", path, err)
	}
	if err := compiledSecretsSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("secrets file %s is invalid: %w", path, err)
	}

	obj := doc.(map[string]any)
	sec := &Secrets{
		LCAPIKey:     stringField(obj, "lc_api_key"),
		LCInvestorID: stringField(obj, "lc_investor_id"),
		P2PKey:       stringField(obj, "p2p_key"),
		P2PSecret:    stringField(obj, "p2p_secret"),
		P2PSID:       stringField(obj, "p2p_sid"),
	}
	if strings.TrimSpace(sec.LCInvestorID) == "" {
		return nil, fmt.Errorf("secrets file %s: lc_investor_id is empty", path)
	}
	return sec, nil
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
