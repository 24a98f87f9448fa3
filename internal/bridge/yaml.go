package bridge

import (
	"fmt"
	"math"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0x6d61/mcp-repl/internal/value"
)

// FromYAML は YAML（フロー形式を含む）をシェル値に変換する。マッピングの順序は保持される。
func FromYAML(data []byte) (value.Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return value.Nothing{}, nil
	}
	return FromYAMLNode(&doc)
}

// FromYAMLNode は yaml.Node をシェル値に変換する
func FromYAMLNode(n *yaml.Node) (value.Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return value.Nothing{}, nil
		}
		return FromYAMLNode(n.Content[0])
	case yaml.AliasNode:
		return FromYAMLNode(n.Alias)
	case yaml.SequenceNode:
		list := make(value.List, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := FromYAMLNode(c)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.MappingNode:
		rec := value.NewRecord()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := FromYAMLNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			rec.Set(n.Content[i].Value, v)
		}
		return rec, nil
	case yaml.ScalarNode:
		return fromYAMLScalar(n)
	}
	return nil, fmt.Errorf("unsupported YAML node kind %d at line %d", n.Kind, n.Line)
}

func fromYAMLScalar(n *yaml.Node) (value.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return value.Nothing{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return value.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return value.Int(i), nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNumberNotRepresentable, n.Value)
		}
		return value.Float(f), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return value.Float(f), nil
	case "!!timestamp":
		var t time.Time
		if err := n.Decode(&t); err != nil {
			return nil, err
		}
		return value.Date(t), nil
	case "!!binary":
		var b []byte
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return value.Binary(b), nil
	default:
		return value.String(n.Value), nil
	}
}

// ToYAML はシェル値を YAML テキストにする。Record のキー順は保持される。
func ToYAML(v value.Value) ([]byte, error) {
	n, err := toYAMLNode(v)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(n)
}

func toYAMLNode(v value.Value) (*yaml.Node, error) {
	switch x := v.(type) {
	case *value.Record:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for k, item := range x.All() {
			c, err := toYAMLNode(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, c)
		}
		return n, nil
	case value.List:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range x {
			c, err := toYAMLNode(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	case value.Date:
		n := &yaml.Node{}
		return n, n.Encode(x.Time())
	case value.Float:
		// YAML は .inf / .nan を表現できる
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			n := &yaml.Node{}
			return n, n.Encode(f)
		}
	case value.Error:
		return nil, x.Err
	}
	j, err := ToJSON(v)
	if err != nil {
		return nil, err
	}
	n := &yaml.Node{}
	if num, ok := j.(interface{ Float64() (float64, error) }); ok {
		f, _ := num.Float64()
		return n, n.Encode(f)
	}
	return n, n.Encode(j)
}
