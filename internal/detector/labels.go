package detector

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/ppe-go/internal/detection"
	"github.com/tphakala/ppe-go/internal/errors"
	"github.com/tphakala/ppe-go/internal/logger"
)

// Vocabulary sources reported by LoadVocabulary.
const (
	VocabularySourceLabels   = "labels"
	VocabularySourceEmbedded = "embedded"
	VocabularySourceMetadata = "metadata"
	VocabularySourceDefault  = "default"
)

const metadataFile = "metadata.yaml"

// LoadVocabulary resolves class names for a model. An explicit labelPath
// must load. Otherwise names come from metadata embedded in the model file,
// then metadata.yaml beside it, then the default PPE vocabulary.
func LoadVocabulary(modelPath, labelPath string, modelData []byte) (detection.Vocabulary, string, error) {
	if labelPath != "" {
		vocab, err := loadLabelFile(labelPath)
		if err != nil {
			return nil, "", errors.New(err).
				Component("detector").
				Category(errors.CategoryLabelLoad).
				Context("label_path", labelPath).
				Build()
		}
		return vocab, VocabularySourceLabels, nil
	}

	if vocab, err := embeddedVocabulary(modelData); err == nil && len(vocab) > 0 {
		return vocab, VocabularySourceEmbedded, nil
	}

	if modelPath != "" {
		path := filepath.Join(filepath.Dir(modelPath), metadataFile)
		if data, err := os.ReadFile(path); err == nil {
			vocab, err := parseYAMLNames(data)
			if err != nil {
				GetLogger().Warn("ignoring unreadable model metadata",
					logger.String("path", path), logger.Error(err))
			} else if len(vocab) > 0 {
				return vocab, VocabularySourceMetadata, nil
			}
		}
	}

	return detection.DefaultVocabulary(), VocabularySourceDefault, nil
}

func loadLabelFile(path string) (detection.Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var vocab detection.Vocabulary
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		vocab, err = parseYAMLNames(data)
	default:
		vocab, err = parseTextLabels(data)
	}
	if err != nil {
		return nil, err
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("no class names in %s", filepath.Base(path))
	}
	return vocab, nil
}

// parseTextLabels reads one class name per non-empty line; the line order
// gives the class ID.
func parseTextLabels(data []byte) (detection.Vocabulary, error) {
	vocab := detection.Vocabulary{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		vocab[len(vocab)] = name
	}
	return vocab, scanner.Err()
}

// parseYAMLNames reads the Ultralytics "names" key, either a map of
// id: name or a list.
func parseYAMLNames(data []byte) (detection.Vocabulary, error) {
	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	vocab := detection.Vocabulary{}
	switch doc.Names.Kind {
	case 0:
		return nil, fmt.Errorf("missing names key")
	case yaml.SequenceNode:
		var names []string
		if err := doc.Names.Decode(&names); err != nil {
			return nil, err
		}
		for i, n := range names {
			vocab[i] = n
		}
	case yaml.MappingNode:
		var names map[int]string
		if err := doc.Names.Decode(&names); err != nil {
			return nil, err
		}
		for id, n := range names {
			vocab[id] = n
		}
	default:
		return nil, fmt.Errorf("names must be a list or a mapping")
	}
	return vocab, nil
}

// embeddedVocabulary reads metadata.json from the zip archive Ultralytics
// appends to exported TFLite models.
func embeddedVocabulary(modelData []byte) (detection.Vocabulary, error) {
	if len(modelData) == 0 {
		return nil, fmt.Errorf("no model data")
	}
	zr, err := zip.NewReader(bytes.NewReader(modelData), int64(len(modelData)))
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if filepath.Base(f.Name) != "metadata.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		var meta struct {
			Names map[string]string `json:"names"`
		}
		err = json.NewDecoder(rc).Decode(&meta)
		rc.Close()
		if err != nil {
			return nil, err
		}
		vocab := detection.Vocabulary{}
		for k, v := range meta.Names {
			id, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("invalid class id %q", k)
			}
			vocab[id] = v
		}
		return vocab, nil
	}
	return nil, fmt.Errorf("no metadata.json in model")
}
