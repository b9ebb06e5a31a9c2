package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// sectionComments documents each top-level key of a generated file.
var sectionComments = map[string]string{
	"logging": "Logging: level is DEBUG, INFO, WARN or ERROR; format is text or json;\noutput is stdout, stderr or a file path.",
	"server":  "Each shutdown step (protocol service, status server, mounts, store)\nis bounded by shutdown_timeout.",
	"cache":   "Reserved for a persistent store backend. The in-memory backends do\nnot write to it.",
	"rpc":     "Protocol service. concurrency is the number of calls a client may keep\nin flight. rate_limit.requests_per_second 0 disables limiting.",
	"nfs":     "Per-workspace NFSv3 servers. Each mount listens on host at a random\nport in [min_port, max_port]; a bind gives up after max_bind_attempts\nports or bind_timeout.",
	"store":   "Object store backend: memory or badger (in-memory BadgerDB). Only\nthe section named by type is read.",
	"metrics": "HTTP status server with /health, /mounts and Prometheus /metrics.",
}

// InitConfig writes the default configuration to the default path and
// returns that path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := GenerateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateYAMLWithComments renders cfg as YAML with a comment above every
// section. Durations are written in time.Duration notation ("5s").
func GenerateYAMLWithComments(cfg *Config) (string, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	formatDurations(&doc, reflect.ValueOf(cfg).Elem())

	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}
	doc.HeadComment = "yak daemon configuration\n\nEvery key can be overridden by an environment variable: YAK_ followed\nby the upper-cased key path with dots replaced by underscores,\nfor example YAK_RPC_ADDR or YAK_LOGGING_LEVEL."

	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return b.String(), nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// formatDurations rewrites the scalars of duration fields, which yaml.v3
// encodes as nanosecond integers.
func formatDurations(node *yaml.Node, v reflect.Value) {
	if node.Kind != yaml.MappingNode || v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		for f := range t.NumField() {
			field := t.Field(f)
			name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
			if name != key.Value {
				continue
			}
			fv := v.Field(f)
			if field.Type == durationType {
				value.Kind = yaml.ScalarNode
				value.Tag = "!!str"
				value.Value = time.Duration(fv.Int()).String()
			} else {
				formatDurations(value, fv)
			}
		}
	}
}
