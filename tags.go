package agentstream

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/tags.yaml
var defaultTagsYAML []byte

// Tag dialect philosophy:
//
// The tag whitelist is the single point of truth for what counts as tree
// structure. The tokenizer, the tag-based parser and embedded-tag detection in
// free text all consult the active TagRegistry. A tag-like sequence whose name
// is not structural is literal text, so a downstream markdown renderer can
// still display it verbatim.
//
// The embedded config/tags.yaml is the default. Library users can replace it by:
//  1. Calling LoadTagConfigFromFile() with custom YAML
//  2. Calling RegisterTagConfig() programmatically

// TagConfig is the decoded tag dialect.
type TagConfig struct {
	Version         string            `yaml:"version"`
	LastUpdated     string            `yaml:"last_updated"`
	Structural      []string          `yaml:"structural"`
	DynamicSuffixes []string          `yaml:"dynamic_suffixes"`
	StripPrefixes   []string          `yaml:"strip_prefixes"`
	Aliases         map[string]string `yaml:"aliases"`
	Verbatim        VerbatimConfig    `yaml:"verbatim"`
}

// VerbatimConfig holds the delimiters of a verbatim (CDATA-equivalent) section.
type VerbatimConfig struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

// Validate checks that the configuration can drive the tokenizer.
func (c *TagConfig) Validate() error {
	if len(c.Structural) == 0 {
		return fmt.Errorf("%w: structural tag list is empty", ErrInvalidTagConfig)
	}
	if c.Verbatim.Open == "" || c.Verbatim.Close == "" {
		return fmt.Errorf("%w: verbatim delimiters must both be set", ErrInvalidTagConfig)
	}
	for _, s := range c.DynamicSuffixes {
		if s == "" {
			return fmt.Errorf("%w: empty dynamic suffix", ErrInvalidTagConfig)
		}
	}
	return nil
}

// TagRegistry answers whitelist and naming questions for the active dialect.
type TagRegistry struct {
	mu         sync.RWMutex
	config     *TagConfig
	structural map[string]bool
}

var (
	globalTags     *TagRegistry
	globalTagsOnce sync.Once
)

// GetTagRegistry returns the global tag registry (singleton)
func GetTagRegistry() *TagRegistry {
	globalTagsOnce.Do(func() {
		globalTags = &TagRegistry{}
		if err := globalTags.loadDefault(); err != nil {
			// The embedded file is part of the build; keep going with a
			// minimal dialect rather than refusing every tag.
			Logger("tags").WithError(err).Warn("failed to load embedded tag config")
			globalTags.set(fallbackTagConfig())
		}
	})
	return globalTags
}

// NewTagRegistry returns a registry for cfg, independent of the global one.
func NewTagRegistry(cfg *TagConfig) (*TagRegistry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &TagRegistry{}
	r.set(cfg)
	return r, nil
}

func fallbackTagConfig() *TagConfig {
	return &TagConfig{
		Version: "fallback",
		Structural: []string{
			TagText, TagThinking, TagToolCall, TagToolResult, TagServerToolCall,
			TagServerToolResult, TagError, TagMetaFiles, TagMetaInit, TagMetaFinal,
			TagAwaitingFrontendTools, TagCitations, TagCitation, TagImage,
			TagChart, TagTable,
		},
		DynamicSuffixes: []string{"_tool_result"},
		StripPrefixes:   []string{"content-block-"},
		Verbatim:        VerbatimConfig{Open: "<![CDATA[", Close: "]]>"},
	}
}

func (r *TagRegistry) loadDefault() error {
	var cfg TagConfig
	if err := yaml.Unmarshal(defaultTagsYAML, &cfg); err != nil {
		return fmt.Errorf("failed to unmarshal embedded tag config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.set(&cfg)
	return nil
}

func (r *TagRegistry) set(cfg *TagConfig) {
	structural := make(map[string]bool, len(cfg.Structural)+len(cfg.Aliases))
	for _, name := range cfg.Structural {
		structural[name] = true
	}
	// Alias sources are structural: an alias only matters for a tag that
	// becomes an element.
	for from := range cfg.Aliases {
		structural[from] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = cfg
	r.structural = structural
}

// Config returns the active configuration. Callers must not modify it.
func (r *TagRegistry) Config() *TagConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// IsStructural returns true if name becomes a tree node.
func (r *TagRegistry) IsStructural(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.structural[name] {
		return true
	}
	return r.hasDynamicSuffixLocked(name)
}

// IsDynamicToolResult returns true for dynamically named server tool results
// (e.g. "web_search_tool_result"). The literal "tool_result" is not dynamic.
func (r *TagRegistry) IsDynamicToolResult(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasDynamicSuffixLocked(name)
}

func (r *TagRegistry) hasDynamicSuffixLocked(name string) bool {
	for _, suffix := range r.config.DynamicSuffixes {
		if len(name) > len(suffix) && strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// ToolType derives a server tool type from a dynamic result name:
// "web_search_tool_result" -> "web_search". Names without a dynamic
// suffix are returned unchanged.
func (r *TagRegistry) ToolType(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, suffix := range r.config.DynamicSuffixes {
		if len(name) > len(suffix) && strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// Canonical maps a backend tag spelling to its node-model name:
// explicit aliases first, then prefix stripping.
func (r *TagRegistry) Canonical(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if to, ok := r.config.Aliases[name]; ok {
		return to
	}
	for _, prefix := range r.config.StripPrefixes {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return name
}

// HasStructuralPrefix returns true if partial could still grow into a
// structural tag name. Used to hold back a tag truncated mid-stream.
func (r *TagRegistry) HasStructuralPrefix(partial string) bool {
	if partial == "" {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name := range r.structural {
		if strings.HasPrefix(name, partial) {
			return true
		}
	}
	return false
}

// Verbatim returns the verbatim section delimiters.
func (r *TagRegistry) Verbatim() (open, close string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Verbatim.Open, r.config.Verbatim.Close
}

// LoadTagConfigFromFile replaces the dialect with one read from a YAML file.
// The file format should match the embedded YAML structure.
func (r *TagRegistry) LoadTagConfigFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read tag config file: %w", err)
	}

	var cfg TagConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to unmarshal tag config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.set(&cfg)
	return nil
}

// RegisterTagConfig programmatically replaces the dialect.
func (r *TagRegistry) RegisterTagConfig(cfg *TagConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.set(cfg)
	return nil
}

// ResetTagConfig restores the embedded default dialect.
func (r *TagRegistry) ResetTagConfig() error {
	return r.loadDefault()
}

// IsStructuralTag is a convenience function that consults the global registry.
func IsStructuralTag(name string) bool {
	return GetTagRegistry().IsStructural(name)
}

// CanonicalTag is a convenience function that consults the global registry.
func CanonicalTag(name string) string {
	return GetTagRegistry().Canonical(name)
}

// LoadTagConfigFromFile is a convenience function that calls the global registry's LoadTagConfigFromFile.
func LoadTagConfigFromFile(path string) error {
	return GetTagRegistry().LoadTagConfigFromFile(path)
}

// RegisterTagConfig is a convenience function that calls the global registry's RegisterTagConfig.
func RegisterTagConfig(cfg *TagConfig) error {
	return GetTagRegistry().RegisterTagConfig(cfg)
}
