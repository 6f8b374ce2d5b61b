package utcp

import (
	"encoding/json"
	"net/url"
	"os"
	"strings"
)

type providerConfig struct {
	Type    string            `json:"provider_type"`
	Name    string            `json:"name"`
	URL     string            `json:"url"`
	Method  string            `json:"http_method"`
	Headers map[string]string `json:"headers"`
}

type providersFile struct {
	Providers []providerConfig `json:"providers"`
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// writeProviders describes a single HTTP device bridge in a temporary
// providers file. The caller removes the file.
func writeProviders(addr string) (string, error) {
	parsed, err := url.Parse(addr)
	if err != nil {
		return "", err
	}

	config := providersFile{
		Providers: []providerConfig{
			{
				Type:   "http",
				Name:   parsed.Hostname(),
				URL:    addr,
				Method: "POST",
				Headers: map[string]string{
					"Content-Type": "application/json",
				},
			},
		},
	}

	f, err := os.CreateTemp("", "vox_utcp_*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(config); err != nil {
		os.Remove(f.Name())
		return "", err
	}

	return f.Name(), nil
}
