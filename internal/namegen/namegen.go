// Package namegen produces randomized person names used as query values,
// mirroring the zh_CN names the service was originally exercised with.
package namegen

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultValue is returned when a provided name list turned out to be empty.
// An empty list must never fail a run.
const DefaultValue = "测试用户"

// Source produces one query value per call. Implementations returned by New
// are not safe for concurrent use; give each worker its own Source or wrap
// with NewLocked.
type Source interface {
	Next() string
}

var surnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "黄", "赵", "吴", "周",
	"徐", "孙", "马", "朱", "胡", "郭", "何", "林", "高", "罗",
}

var givenNames = []string{
	"伟", "芳", "娜", "敏", "静", "丽", "强", "磊", "军", "洋",
	"勇", "艳", "杰", "娟", "涛", "明", "超", "秀兰", "霞", "平",
	"刚", "桂英", "建华", "文", "辉",
}

// Generator composes names from embedded lists, or draws from a custom list
// when one was loaded.
type Generator struct {
	rnd   *rand.Rand
	names []string
}

// New creates an unsynchronized Generator. A non-empty names slice switches
// the generator to list mode; otherwise names are composed from the embedded
// surname and given-name tables.
func New(names []string, seed int64) *Generator {
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		names: names,
	}
}

// Next returns the next generated value.
func (g *Generator) Next() string {
	if len(g.names) > 0 {
		return g.names[g.rnd.Intn(len(g.names))]
	}
	name := surnames[g.rnd.Intn(len(surnames))] + givenNames[g.rnd.Intn(len(givenNames))]
	// Roughly a third of composed names get a second given-name character.
	if g.rnd.Intn(3) == 0 {
		name += givenNames[g.rnd.Intn(len(givenNames))]
	}
	return name
}

// fixed always returns the same value. Used when a custom list is empty.
type fixed struct{}

func (fixed) Next() string { return DefaultValue }

// locked serializes access to an inner Source.
type locked struct {
	mu  sync.Mutex
	src Source
}

func (l *locked) Next() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Next()
}

// NewLocked wraps a Source so it can be shared across goroutines.
func NewLocked(src Source) Source {
	return &locked{src: src}
}

// Factory builds one Source per worker, each with its own RNG stream so the
// hot path needs no synchronization.
type Factory struct {
	names []string
	base  int64
}

// NewFactory creates a Factory. names may be nil for composed generation.
func NewFactory(names []string) *Factory {
	return &Factory{names: names, base: time.Now().UnixNano()}
}

// ForWorker returns the Source for the given worker index.
func (f *Factory) ForWorker(worker int) Source {
	if f.names != nil && len(f.names) == 0 {
		return fixed{}
	}
	return New(f.names, f.base+int64(worker)*7919)
}

// LoadNames reads a name list from path. YAML files (.yaml/.yml) must contain
// either a sequence of strings or a mapping with a "names" sequence; any other
// extension is treated as plain text with one name per line. Blank lines and
// '#' comments are skipped.
func LoadNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read names file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAMLNames(data)
	default:
		return parseTextNames(data), nil
	}
}

func parseYAMLNames(data []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return trimNames(list), nil
	}

	var doc struct {
		Names []string `yaml:"names"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse names file: %w", err)
	}
	return trimNames(doc.Names), nil
}

func parseTextNames(data []byte) []string {
	lines := strings.Split(string(data), "\n")
	return trimNames(lines)
}

func trimNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, name := range in {
		name = strings.TrimSpace(name)
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		out = append(out, name)
	}
	return out
}
