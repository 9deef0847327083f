package config

import (
	"maps"
	"net/url"
	"strings"
)

// SiteConfig holds configuration for one newsletter host.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent with every request for this site,
	// e.g. to get past a subscriber wall.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent with every request for this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Stylesheets are local CSS files applied when inlining styles, in
	// addition to the stylesheets the page links to. Under a site they
	// apply to scans of that host; under defaults they are used only by
	// the inline command and are never inherited by sites.
	Stylesheets []string `yaml:"stylesheets,omitempty"`

	// SkipPatterns are doublestar globs for URLs the auditor treats as
	// reachable without a request, such as click trackers that reject
	// automated clients. Patterns match the URL without its scheme.
	SkipPatterns []string `yaml:"skipPatterns,omitempty"`
}

// File represents the structure of the .newslettercheck configuration file.
type File struct {
	// Sites maps host names (e.g. "news.example.com") to their configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to all sites unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host, merged over the
// defaults. Headers are merged key by key; cookie and skip patterns
// replace the default when set. Stylesheets come from the site entry
// only. A nil File yields the zero SiteConfig.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	if cf == nil {
		return SiteConfig{}
	}

	result := cf.Defaults
	result.Stylesheets = nil
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(siteConfig.Headers))
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if len(siteConfig.Stylesheets) > 0 {
		result.Stylesheets = siteConfig.Stylesheets
	}
	if len(siteConfig.SkipPatterns) > 0 {
		result.SkipPatterns = siteConfig.SkipPatterns
	}

	return result
}

// GetSiteConfigForURL looks up the site configuration by the host of
// rawURL. Unparsable URLs get the defaults.
func (cf *File) GetSiteConfigForURL(rawURL string) SiteConfig {
	u, err := url.Parse(rawURL)
	if err != nil {
		return cf.GetSiteConfig("")
	}
	return cf.GetSiteConfig(strings.ToLower(u.Hostname()))
}
