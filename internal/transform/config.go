package transform

import (
	"fmt"

	"github.com/dnswlt/docmeta/internal/extract"
)

// MetadataType selects the kind of metadata a documentation key is converted into.
type MetadataType string

const (
	MetadataCustomProperty MetadataType = "custom_property"
	MetadataTag            MetadataType = "tag"
	MetadataGlossaryTerm   MetadataType = "glossary_term"
	MetadataOwner          MetadataType = "owner"
)

var validMetadataTypes = map[MetadataType]bool{
	MetadataCustomProperty: true,
	MetadataTag:            true,
	MetadataGlossaryTerm:   true,
	MetadataOwner:          true,
}

// Semantics controls how custom properties interact with pre-existing values.
type Semantics string

const (
	// SemanticsOverwrite always sets the property.
	SemanticsOverwrite Semantics = "OVERWRITE"
	// SemanticsPatch only sets the property if it is absent.
	SemanticsPatch Semantics = "PATCH"
)

// Parser modes for the documentation scanner.
const (
	ParserPattern  = "pattern"
	ParserMarkdown = "markdown"
)

// KeyMapping configures the conversion of a single documentation key.
type KeyMapping struct {
	// The documentation key to look for (left-hand side of the bullet).
	// Must be unique within a configuration.
	// [required]
	KeyName string `yaml:"keyName"`
	// The kind of metadata to create for the key.
	// [required]
	MetadataType MetadataType `yaml:"metadataType"`
	// Interpreted per metadata type: the custom property name, the tag URN,
	// the glossary term URN, or the ownership type token.
	// [required]
	TargetName string `yaml:"targetName"`
	// A description of what the key represents. Informational only.
	// [optional]
	Description string `yaml:"description,omitempty"`
}

// Config configures a Transformer.
type Config struct {
	// The key mappings to apply, in order.
	// [required]
	KeyMappings []*KeyMapping `yaml:"keyMappings"`
	// The documentation field to scan. Defaults to "description".
	// [optional]
	DocumentationField string `yaml:"documentationField"`
	// The key-value pattern, see the extract package for its semantics.
	// Empty selects the default bullet pattern. Ignored for the markdown parser.
	// [optional]
	KeyValuePattern string `yaml:"keyValuePattern"`
	// The parser mode, "pattern" (default) or "markdown".
	// [optional]
	Parser string `yaml:"parser"`
	// OVERWRITE (default) or PATCH semantics for custom properties.
	// [optional]
	Semantics Semantics `yaml:"semantics"`
	// The domain of synthesized owner email addresses. Defaults to "example.com".
	// [optional]
	OwnerEmailDomain string `yaml:"ownerEmailDomain"`
	// The job title set on synthesized owner profiles. Defaults to "Data Owner".
	// [optional]
	OwnerTitle string `yaml:"ownerTitle"`
}

// Validate populates defaults and checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.DocumentationField == "" {
		c.DocumentationField = "description"
	}
	if c.Parser == "" {
		c.Parser = ParserPattern
	}
	if c.Parser != ParserPattern && c.Parser != ParserMarkdown {
		return fmt.Errorf("invalid parser %q (must be %q or %q)", c.Parser, ParserPattern, ParserMarkdown)
	}
	if c.Semantics == "" {
		c.Semantics = SemanticsOverwrite
	}
	if c.Semantics != SemanticsOverwrite && c.Semantics != SemanticsPatch {
		return fmt.Errorf("invalid semantics %q (must be %q or %q)", c.Semantics, SemanticsOverwrite, SemanticsPatch)
	}
	if c.OwnerEmailDomain == "" {
		c.OwnerEmailDomain = "example.com"
	}
	if c.OwnerTitle == "" {
		c.OwnerTitle = "Data Owner"
	}
	if c.Parser == ParserPattern {
		if _, err := extract.New(c.KeyValuePattern); err != nil {
			return err
		}
	}
	seen := make(map[string]bool)
	for i, m := range c.KeyMappings {
		if m.KeyName == "" {
			return fmt.Errorf("keyMappings[%d]: keyName must not be empty", i)
		}
		if seen[m.KeyName] {
			return fmt.Errorf("keyMappings[%d]: duplicate keyName %q", i, m.KeyName)
		}
		seen[m.KeyName] = true
		if !validMetadataTypes[m.MetadataType] {
			return fmt.Errorf("keyMappings[%d]: invalid metadataType %q", i, m.MetadataType)
		}
		if m.TargetName == "" {
			return fmt.Errorf("keyMappings[%d]: targetName must not be empty", i)
		}
	}
	return nil
}
