// Package catalog 从 YAML 文件加载门店的初始商品和促销目录。
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MorseWayne/catalog_shop/internal/domain"
)

//go:embed default.yaml
var defaultCatalog []byte

var (
	ErrDuplicatePromotion = errors.New("duplicate promotion key")
	ErrUnknownPromotion   = errors.New("unknown promotion key")
	ErrNotInteger         = errors.New("value has to be an integer")
)

// Count 只接受 YAML 整数的数量字段，1.5 这类小数不会被截断
type Count int

// UnmarshalYAML 拒绝非 !!int 标签的节点
func (c *Count) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!int" {
		return fmt.Errorf("line %d: %w, got %q", node.Line, ErrNotInteger, node.Value)
	}
	var v int
	if err := node.Decode(&v); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*c = Count(v)
	return nil
}

// File 目录文件结构
type File struct {
	Promotions []PromotionSpec `yaml:"promotions"`
	Products   []ProductSpec   `yaml:"products"`
}

// PromotionSpec 促销定义，Key 供商品引用
type PromotionSpec struct {
	Key     string               `yaml:"key"`
	Name    string               `yaml:"name"`
	Kind    domain.PromotionKind `yaml:"kind"`
	Percent float64              `yaml:"percent"`
}

// ProductSpec 商品定义
type ProductSpec struct {
	Name      string             `yaml:"name"`
	Kind      domain.ProductKind `yaml:"kind"`
	Price     float64            `yaml:"price"`
	Quantity  Count              `yaml:"quantity"`
	Maximum   Count              `yaml:"maximum"`
	Promotion string             `yaml:"promotion"`
	Active    *bool              `yaml:"active"` // 缺省为上架
}

// Parse 解析目录 YAML，未知字段和类型不符均视为错误
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &f, nil
}

// LoadFile 读取并解析目录文件
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Default 返回内置的默认目录
func Default() *File {
	f, err := Parse(bytes.NewReader(defaultCatalog))
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return f
}

// Load 加载目录，path 为空时使用内置默认目录
func Load(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Build 构造促销注册表和门店，商品顺序与文件一致
func (f *File) Build() (*domain.Store, map[string]domain.Promotion, error) {
	promotions := make(map[string]domain.Promotion, len(f.Promotions))
	for i, spec := range f.Promotions {
		key := strings.TrimSpace(spec.Key)
		if key == "" {
			key = string(spec.Kind)
		}
		if _, ok := promotions[key]; ok {
			return nil, nil, fmt.Errorf("catalog promotion %d: %w: %q", i+1, ErrDuplicatePromotion, key)
		}
		promo, err := domain.NewPromotion(spec.Kind, spec.Name, spec.Percent)
		if err != nil {
			return nil, nil, fmt.Errorf("catalog promotion %d (%s): %w", i+1, key, err)
		}
		promotions[key] = promo
	}

	store := domain.NewStore()
	for i, spec := range f.Products {
		req := domain.CreateProductRequest{
			Name:     spec.Name,
			Price:    spec.Price,
			Quantity: int(spec.Quantity),
			Kind:     spec.Kind,
			Maximum:  int(spec.Maximum),
		}
		product, err := req.BuildProduct()
		if err != nil {
			return nil, nil, fmt.Errorf("catalog product %d (%s): %w", i+1, spec.Name, err)
		}

		if spec.Promotion != "" {
			promo, ok := promotions[spec.Promotion]
			if !ok {
				return nil, nil, fmt.Errorf("catalog product %d (%s): %w: %q", i+1, spec.Name, ErrUnknownPromotion, spec.Promotion)
			}
			product.SetPromotion(promo)
		}
		if spec.Active != nil && !*spec.Active {
			product.Deactivate()
		}

		if err := store.AddProduct(product); err != nil {
			return nil, nil, err
		}
	}

	return store, promotions, nil
}
