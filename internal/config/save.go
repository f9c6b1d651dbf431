package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/sensible/internal/distance"
	"github.com/zjrosen/sensible/internal/log"
)

// SaveMasks replaces the masks table in the config file.
// This preserves comments and formatting in other sections by using yaml.Node.
func SaveMasks(configPath string, rules distance.Rules) error {
	if err := rules.Validate(); err != nil {
		return fmt.Errorf("invalid masks: %w", err)
	}

	data, err := os.ReadFile(configPath) //nolint:gosec // G304: path is the user's config file
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	// Parse into yaml.Node to preserve comments
	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	masksNode := buildMasksNode(rules)

	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{
				{
					Kind: yaml.MappingNode,
					Content: []*yaml.Node{
						{Kind: yaml.ScalarNode, Value: "masks"},
						masksNode,
					},
				},
			},
		}
	} else if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root := doc.Content[0]
		if root.Kind != yaml.MappingNode {
			return fmt.Errorf("parsing config: top level is not a mapping")
		}
		found := false
		for i := 0; i < len(root.Content)-1; i += 2 {
			if root.Content[i].Value == "masks" {
				root.Content[i+1] = masksNode
				found = true
				break
			}
		}
		if !found {
			root.Content = append(root.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: "masks"},
				masksNode,
			)
		}
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	if err := writeAtomic(configPath, buf.Bytes()); err != nil {
		return err
	}

	log.Info(log.CatConfig, "Saved masks", "path", configPath, "count", len(rules))
	return nil
}

// writeAtomic writes to a temp file in the same directory, then renames it
// over path so the watcher never observes a half-written file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".sensible.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// buildMasksNode creates a yaml.Node representing the masks array.
func buildMasksNode(rules distance.Rules) *yaml.Node {
	node := &yaml.Node{
		Kind:    yaml.SequenceNode,
		Content: make([]*yaml.Node, 0, len(rules)),
	}

	for _, r := range rules {
		node.Content = append(node.Content, &yaml.Node{
			Kind: yaml.MappingNode,
			Content: []*yaml.Node{
				{Kind: yaml.ScalarNode, Value: "distance"},
				{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(r.Distance, 10)},
				{Kind: yaml.ScalarNode, Value: "mask"},
				{Kind: yaml.ScalarNode, Value: r.Mask, Style: yaml.DoubleQuotedStyle},
			},
		})
	}

	return node
}

// SetMask inserts rule into rules, replacing any rule with the same
// distance, and saves the ascending result.
func SetMask(configPath string, rule distance.Rule, rules distance.Rules) (distance.Rules, error) {
	updated := make(distance.Rules, 0, len(rules)+1)
	for _, r := range rules {
		if r.Distance != rule.Distance {
			updated = append(updated, r)
		}
	}
	updated = append(updated, rule)
	sort.Slice(updated, func(i, j int) bool { return updated[i].Distance < updated[j].Distance })

	if err := SaveMasks(configPath, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteMask removes the rule with the given distance and saves.
// Deleting the last rule is allowed; every past instant then uses past_mask.
func DeleteMask(configPath string, dist int64, rules distance.Rules) (distance.Rules, error) {
	updated := make(distance.Rules, 0, len(rules))
	for _, r := range rules {
		if r.Distance != dist {
			updated = append(updated, r)
		}
	}
	if len(updated) == len(rules) {
		return nil, fmt.Errorf("no mask with distance %d", dist)
	}

	if err := SaveMasks(configPath, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Marshal encodes cfg as YAML in the same shape the config file uses.
// Durations are written in their string form so the output loads back.
func Marshal(cfg Config) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	for i := 0; i < len(root.Content)-1; i += 2 {
		if root.Content[i].Value == "refresh_rate" {
			root.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: cfg.RefreshRate.String()}
		}
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()
	return buf.Bytes(), nil
}
