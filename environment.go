package beam

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// CachePolicy describes how requests issued under an Environment treat
// intermediary and local caches. It is sent as cache directive headers.
type CachePolicy int

const (
	// CacheBypass ignores local and remote cache data. It is the default.
	CacheBypass CachePolicy = iota
	// CacheProtocol defers to the server's caching headers.
	CacheProtocol
	// CacheReloadLocal revalidates with the origin before using a cached copy.
	CacheReloadLocal
	// CacheReturnElseLoad accepts stale cached data when available.
	CacheReturnElseLoad
	// CacheReturnDontLoad only accepts cached data.
	CacheReturnDontLoad
)

var cachePolicyNames = map[CachePolicy]string{
	CacheBypass:         "bypass",
	CacheProtocol:       "protocol",
	CacheReloadLocal:    "reload-local",
	CacheReturnElseLoad: "return-else-load",
	CacheReturnDontLoad: "return-dont-load",
}

func (c CachePolicy) String() string {
	if name, ok := cachePolicyNames[c]; ok {
		return name
	}

	return fmt.Sprintf("CachePolicy(%d)", int(c))
}

func (c CachePolicy) MarshalText() ([]byte, error) {
	if _, ok := cachePolicyNames[c]; !ok {
		return nil, fmt.Errorf("unknown cache policy[%d]", int(c))
	}

	return []byte(c.String()), nil
}

func (c *CachePolicy) UnmarshalText(text []byte) error {
	policy, err := ParseCachePolicy(string(text))
	if err != nil {
		return err
	}

	*c = policy
	return nil
}

// ParseCachePolicy resolves a policy from its String form. An empty
// string yields CacheBypass.
func ParseCachePolicy(s string) (CachePolicy, error) {
	if s == "" {
		return CacheBypass, nil
	}

	for policy, name := range cachePolicyNames {
		if strings.EqualFold(name, s) {
			return policy, nil
		}
	}

	return CacheBypass, fmt.Errorf("unknown cache policy[%s]", s)
}

// directives returns the request headers that express the policy.
func (c CachePolicy) directives() map[string]string {
	switch c {
	case CacheBypass:
		return map[string]string{"Cache-Control": "no-cache, no-store", "Pragma": "no-cache"}
	case CacheReloadLocal:
		return map[string]string{"Cache-Control": "no-cache"}
	case CacheReturnElseLoad:
		return map[string]string{"Cache-Control": "max-stale"}
	case CacheReturnDontLoad:
		return map[string]string{"Cache-Control": "only-if-cached"}
	default:
		return nil
	}
}

// Environment is a deployment target: where requests go and which
// headers they carry by default. Treat it as a value; a Service keeps
// its own copy.
type Environment struct {
	Name        string            `json:"name" validate:"required"`
	BaseURL     string            `json:"base_url" validate:"required,url"`
	Headers     map[string]string `json:"headers"`
	CachePolicy CachePolicy       `json:"cache_policy" validate:"gte=0,lte=4"`
}

// EnvironmentOption configures NewEnvironment.
type EnvironmentOption func(*environmentOpts) error

type environmentOpts struct {
	headers     map[string]string
	headerCfg   *HeaderConfig
	cachePolicy CachePolicy
}

// WithHeaders replaces the default headers entirely.
func WithHeaders(headers map[string]string) EnvironmentOption {
	return func(opts *environmentOpts) error {
		opts.headers = headers
		return nil
	}
}

// WithHeaderConfig derives the default headers from cfg instead of
// DetectHeaderConfig.
func WithHeaderConfig(cfg HeaderConfig) EnvironmentOption {
	return func(opts *environmentOpts) error {
		opts.headerCfg = &cfg
		return nil
	}
}

// WithCachePolicy overrides CacheBypass.
func WithCachePolicy(policy CachePolicy) EnvironmentOption {
	return func(opts *environmentOpts) error {
		if _, ok := cachePolicyNames[policy]; !ok {
			return fmt.Errorf("unknown cache policy[%d]", int(policy))
		}
		opts.cachePolicy = policy
		return nil
	}
}

// NewEnvironment builds a validated Environment. Unless WithHeaders is
// given, the default headers come from DetectHeaderConfig.
func NewEnvironment(name, baseURL string, optFns ...EnvironmentOption) (Environment, error) {
	var opts environmentOpts
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return Environment{}, fmt.Errorf("applying environment option: %w", err)
		}
	}

	headers := opts.headers
	if headers == nil {
		cfg := opts.headerCfg
		if cfg == nil {
			detected := DetectHeaderConfig()
			cfg = &detected
		}
		headers = cfg.Headers()
	}

	env := Environment{
		Name:        name,
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		Headers:     maps.Clone(headers),
		CachePolicy: opts.cachePolicy,
	}

	if err := env.Validate(); err != nil {
		return Environment{}, fmt.Errorf("validating environment[%s]: %w", name, err)
	}

	return env, nil
}

// Validate checks the environment against its declared constraints.
func (e Environment) Validate() error {
	return Validate(e)
}

// clone returns a copy that shares no mutable state with e.
func (e Environment) clone() Environment {
	e.Headers = maps.Clone(e.Headers)
	return e
}

// =============================================================================
// Default headers

const (
	defaultAcceptEncoding = "gzip"
	defaultContentType    = "application/json"
	defaultUserAgent      = "Beam-Default"
	maxLanguages          = 6
)

// HeaderConfig holds the inputs for an Environment's default headers.
// Compute it once at startup, typically with DetectHeaderConfig.
type HeaderConfig struct {
	AcceptEncoding string
	// Languages are BCP 47 tags in order of preference.
	Languages   []string
	UserAgent   string
	ContentType string
}

// Headers renders the Accept-Encoding, Accept-Language, User-Agent and
// Content-Type headers. Empty fields fall back to package defaults.
func (c HeaderConfig) Headers() map[string]string {
	encoding := c.AcceptEncoding
	if encoding == "" {
		encoding = defaultAcceptEncoding
	}

	ua := c.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	contentType := c.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	headers := map[string]string{
		"Accept-Encoding": encoding,
		"User-Agent":      ua,
		"Content-Type":    contentType,
	}

	if lang := acceptLanguage(c.Languages); lang != "" {
		headers["Accept-Language"] = lang
	}

	return headers
}

// acceptLanguage weights the first six languages 1.0, 0.9, 0.8 ...
func acceptLanguage(langs []string) string {
	if len(langs) > maxLanguages {
		langs = langs[:maxLanguages]
	}

	parts := make([]string, 0, len(langs))
	for i, lang := range langs {
		q := 1.0 - float64(i)*0.1
		parts = append(parts, lang+";q="+strconv.FormatFloat(q, 'f', 1, 64))
	}

	return strings.Join(parts, ", ")
}

// DetectHeaderConfig reads the preferred languages from the locale
// environment variables and derives a User-Agent from the binary's
// build information.
func DetectHeaderConfig() HeaderConfig {
	return HeaderConfig{
		AcceptEncoding: defaultAcceptEncoding,
		Languages:      PreferredLanguages(os.Getenv),
		UserAgent:      userAgent(),
		ContentType:    defaultContentType,
	}
}

// PreferredLanguages returns canonical BCP 47 tags from LANGUAGE,
// LC_ALL, LC_MESSAGES and LANG, in that order of precedence. getenv is
// usually os.Getenv. Unparseable entries and the C/POSIX locales are
// skipped.
func PreferredLanguages(getenv func(string) string) []string {
	var raw []string
	if v := getenv("LANGUAGE"); v != "" {
		raw = strings.Split(v, ":")
	} else {
		for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
			if v := getenv(key); v != "" {
				raw = []string{v}
				break
			}
		}
	}

	seen := make(map[string]bool)
	var langs []string
	for _, entry := range raw {
		tag, err := parseLocale(entry)
		if err != nil {
			continue
		}

		s := tag.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		langs = append(langs, s)
	}

	return langs
}

var errPOSIXLocale = errors.New("posix locale")

// parseLocale turns "en_US.UTF-8@euro" into en-US.
func parseLocale(s string) (language.Tag, error) {
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}

	if s == "" || s == "C" || s == "POSIX" {
		return language.Und, errPOSIXLocale
	}

	return language.Parse(strings.ReplaceAll(s, "_", "-"))
}

// userAgent formats "executable/version (module; build:revision; goos/goarch)".
func userAgent() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return defaultUserAgent
	}

	executable := "Unknown"
	if len(os.Args) > 0 {
		executable = filepath.Base(os.Args[0])
	}

	module := orUnknown(info.Main.Path)
	version := orUnknown(info.Main.Version)

	build := "Unknown"
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			build = s.Value
			if len(build) > 12 {
				build = build[:12]
			}
		}
	}

	return fmt.Sprintf("%s/%s (%s; build:%s; %s/%s)", executable, version, module, build, runtime.GOOS, runtime.GOARCH)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}

	return s
}
