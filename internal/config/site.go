package config

import "maps"

// SiteConfig holds capture settings for one host.
type SiteConfig struct {
	// Cookie is sent when capturing pages from this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent when capturing pages.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .nucheck configuration file.
type File struct {
	// Validator overrides the default checker endpoint.
	Validator string `yaml:"validator,omitempty"`

	// UserAgent overrides the default User-Agent.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Sites maps host names (e.g. "staging.example.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every host unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Ignore lists URL path globs that --depth never crawls.
	Ignore []string `yaml:"ignore,omitempty"`
}

// GetSiteConfig returns the settings for host: the defaults with the
// host's own cookie replacing the default one and its headers merged in.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := SiteConfig{Cookie: cf.Defaults.Cookie}
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	return result
}
