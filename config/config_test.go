package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
sources:
  - name: yad2
    url: https://www.yad2.co.il/realestate/rent?city=5000
    domain_hint: yad2.co.il
  - url: https://www.example.co.il/rent
filters:
  must_include_keywords: ["מרפסת"]
  exclude_keywords: ["סאבלט", "שותפים"]
  min_rooms: 2
  min_size_sqm: 50
  max_price_nis: 7000
email:
  from_email: bot@example.com
  from_name: Rental Bot
  to_emails:
    - me@example.com
  smtp_host: smtp.gmail.com
  smtp_port: 587
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(cfg.Sources))
	}
	if cfg.Sources[0].DomainHint != "yad2.co.il" {
		t.Errorf("unexpected domain hint: %q", cfg.Sources[0].DomainHint)
	}
	// A source without a name is labeled by its URL
	if cfg.Sources[1].Name != "https://www.example.co.il/rent" {
		t.Errorf("unnamed source should default to its URL, got %q", cfg.Sources[1].Name)
	}

	if cfg.Filters.MinRooms != 2 || cfg.Filters.MaxPriceNis != 7000 {
		t.Errorf("unexpected filters: %+v", cfg.Filters)
	}
	if len(cfg.Filters.ExcludeKeywords) != 2 {
		t.Errorf("unexpected exclude keywords: %v", cfg.Filters.ExcludeKeywords)
	}

	if cfg.Email.SMTPPort != 587 {
		t.Errorf("unexpected smtp port: %d", cfg.Email.SMTPPort)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing config file must be an error")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "sources: [unclosed")); err == nil {
		t.Error("malformed YAML must be an error")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no sources", `
email:
  from_email: a@b.c
  to_emails: [x@y.z]
  smtp_host: smtp.gmail.com
  smtp_port: 587
`},
		{"source without url", `
sources:
  - name: broken
email:
  from_email: a@b.c
  to_emails: [x@y.z]
  smtp_host: smtp.gmail.com
  smtp_port: 587
`},
		{"no recipients", `
sources:
  - url: https://a
email:
  from_email: a@b.c
  smtp_host: smtp.gmail.com
  smtp_port: 587
`},
		{"no smtp host", `
sources:
  - url: https://a
email:
  from_email: a@b.c
  to_emails: [x@y.z]
  smtp_port: 587
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

// Unknown optional fields simply default to "no restriction".
func TestLoadOmittedFiltersAreZero(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  - url: https://a
email:
  from_email: a@b.c
  to_emails: [x@y.z]
  smtp_host: smtp.gmail.com
  smtp_port: 587
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Filters.MinRooms != 0 || cfg.Filters.MaxPriceNis != 0 || len(cfg.Filters.ExcludeKeywords) != 0 {
		t.Errorf("omitted filters should be zero values: %+v", cfg.Filters)
	}
}
