package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// parseTOML はサーバー順を MetaData.Keys の出現順から取る。
// Keys は明示的に定義されたキーしか含まないため、[servers.x.command] のような
// 深いヘッダーやドット付きキーでは key[1] の初出をサーバーの位置とみなす。
func parseTOML(data []byte) ([]entry, error) {
	var doc struct {
		Servers map[string]rawServer `toml:"servers"`
	}
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(doc.Servers))
	var out []entry
	for _, key := range md.Keys() {
		if len(key) < 2 || key[0] != "servers" || seen[key[1]] {
			continue
		}
		seen[key[1]] = true
		out = append(out, entry{name: key[1], server: doc.Servers[key[1]]})
	}
	return out, nil
}

// parseYAML は yaml.Node のマッピング順をそのまま使う
func parseYAML(data []byte) ([]entry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level must be a mapping")
	}

	var out []entry
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "servers" {
			continue
		}
		servers := doc.Content[i+1]
		if servers.Tag == "!!null" {
			continue
		}
		if servers.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: servers must be a mapping", servers.Line)
		}
		for j := 0; j+1 < len(servers.Content); j += 2 {
			name := servers.Content[j].Value
			var rs rawServer
			if err := servers.Content[j+1].Decode(&rs); err != nil {
				return nil, fmt.Errorf("server %q: %w", name, err)
			}
			out = append(out, entry{name: name, server: rs})
		}
	}
	return out, nil
}

// parseJSON はコメントと末尾カンマを許す JSONC を受け、gjson でキー順に辿る
func parseJSON(data []byte) ([]entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	js := jsonc.ToJSON(data)
	if !gjson.ValidBytes(js) {
		return nil, fmt.Errorf("invalid JSON")
	}

	var (
		out []entry
		err error
	)
	gjson.GetBytes(js, "servers").ForEach(func(k, v gjson.Result) bool {
		var rs rawServer
		if uerr := json.Unmarshal([]byte(v.Raw), &rs); uerr != nil {
			err = fmt.Errorf("server %q: %w", k.String(), uerr)
			return false
		}
		out = append(out, entry{name: k.String(), server: rs})
		return true
	})
	return out, err
}
