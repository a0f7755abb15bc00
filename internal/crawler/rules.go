package crawler

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"

	werrors "sjsage522/couponwatcher/pkg/errors"
)

//go:embed rules.yaml
var defaultRuleYAML []byte

// DefaultRule returns the embedded extraction rule
func DefaultRule() (*Rule, error) {
	return ParseRule(defaultRuleYAML)
}

// LoadRule reads a rule from path, or the embedded default when path is empty
func LoadRule(path string) (*Rule, error) {
	if path == "" {
		return DefaultRule()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, werrors.NewConfiguration(fmt.Sprintf("failed to read rule file %s", path), err)
	}
	return ParseRule(data)
}

// ParseRule decodes and validates a YAML rule; unknown keys are rejected
func ParseRule(data []byte) (*Rule, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var rule Rule
	if err := dec.Decode(&rule); err != nil {
		return nil, werrors.NewConfiguration("failed to parse extraction rule", err)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Validate checks that the rule can drive a fetch
func (r *Rule) Validate() error {
	if r.Name == "" {
		return werrors.NewConfiguration("rule name is empty", nil)
	}
	if r.Version < 1 {
		return werrors.NewConfiguration(fmt.Sprintf("rule %s: version must be >= 1", r.Name), nil)
	}

	u, err := url.Parse(r.ListingURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return werrors.NewConfiguration(fmt.Sprintf("rule %s: listing_url %q is not an absolute http(s) URL", r.Name, r.ListingURL), err)
	}

	required := map[string]string{
		"listing.ready": r.Listing.Ready,
		"listing.entry": r.Listing.Entry,
		"listing.link":  r.Listing.Link,
		"listing.image": r.Listing.Image,
		"post.ready":    r.Post.Ready,
	}
	for _, field := range []string{"listing.ready", "listing.entry", "listing.link", "listing.image", "post.ready"} {
		if required[field] == "" {
			return werrors.NewConfiguration(fmt.Sprintf("rule %s: %s selector is empty", r.Name, field), nil)
		}
	}
	return nil
}

// String identifies the rule in logs
func (r *Rule) String() string {
	return fmt.Sprintf("%s@v%d", r.Name, r.Version)
}
