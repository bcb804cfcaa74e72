package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wingman-run/wingman/internal/model"
)

// FeatureLoader resolves feature path schemes and parses the resulting text
// (spec.md §6 "Feature path schemes"): a plain filesystem path;
// `classpath:<path>` resolving via a configured resource root; an inline
// string, used directly by tests.
type FeatureLoader struct {
	Parser        model.Parser
	WorkingDir    string
	ClasspathRoot string
}

// NewFeatureLoader returns a loader anchored at workingDir, with classpath:
// references resolved under classpathRoot.
func NewFeatureLoader(parser model.Parser, workingDir, classpathRoot string) *FeatureLoader {
	return &FeatureLoader{Parser: parser, WorkingDir: workingDir, ClasspathRoot: classpathRoot}
}

// Load resolves and parses one feature reference.
func (l *FeatureLoader) Load(ref string) (*model.Feature, error) {
	switch {
	case strings.HasPrefix(ref, "classpath:"):
		rel := strings.TrimPrefix(ref, "classpath:")
		path := filepath.Join(l.ClasspathRoot, rel)
		return l.loadFile(path)
	case strings.HasPrefix(ref, "inline:"):
		text := strings.TrimPrefix(ref, "inline:")
		return l.Parser.Parse(model.ContentIdentity(text), text)
	default:
		path := ref
		if !filepath.IsAbs(path) {
			path = filepath.Join(l.WorkingDir, path)
		}
		return l.loadFile(path)
	}
}

func (l *FeatureLoader) loadFile(path string) (*model.Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading feature %s: %w", path, err)
	}
	return l.Parser.Parse(path, string(data))
}

// LoadAll loads every reference, collecting parse errors without aborting
// the rest of the batch (spec.md §7 kind 1: "Fatal for that feature; the
// suite continues with remaining features").
func (l *FeatureLoader) LoadAll(refs []string) ([]*model.Feature, []error) {
	var features []*model.Feature
	var errs []error
	for _, ref := range refs {
		f, err := l.Load(ref)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		features = append(features, f)
	}
	return features, errs
}
