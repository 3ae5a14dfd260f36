package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// artificialLabel is the class name the detector model uses for generated images.
const artificialLabel = "artificial"

type modelMeta struct {
	Labels    []string
	NumLabels int
}

// loadModelMeta reads class labels from config.json (id2label/label2id) and,
// when present, label_map.json, which takes precedence.
func loadModelMeta(dir string) (modelMeta, error) {
	meta := modelMeta{}

	configPath := filepath.Join(dir, "config.json")
	if data, err := os.ReadFile(configPath); err == nil {
		var cfg struct {
			NumLabels int               `json:"num_labels"`
			ID2Label  map[string]string `json:"id2label"`
			Label2ID  map[string]int    `json:"label2id"`
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return meta, fmt.Errorf("parse %s: %w", configPath, err)
		}
		meta.NumLabels = cfg.NumLabels
		meta.Labels = labelsFromIDMap(cfg.ID2Label)
		if len(meta.Labels) == 0 {
			meta.Labels = labelsFromLabel2ID(cfg.Label2ID)
		}
	} else if !os.IsNotExist(err) {
		return meta, err
	}

	labelPath := filepath.Join(dir, "label_map.json")
	if data, err := os.ReadFile(labelPath); err == nil {
		labels, err := parseLabelMap(data)
		if err != nil {
			return meta, fmt.Errorf("parse %s: %w", labelPath, err)
		}
		meta.Labels = labels
	} else if !os.IsNotExist(err) {
		return meta, err
	}

	if len(meta.Labels) > meta.NumLabels {
		meta.NumLabels = len(meta.Labels)
	}
	if meta.NumLabels == 0 {
		return meta, fmt.Errorf("no labels found in %s", dir)
	}
	return meta, nil
}

// parseLabelMap accepts either a JSON array or an {"idx": label} object.
func parseLabelMap(data []byte) ([]string, error) {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	out := make([]string, len(m))
	for k, v := range m {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, err)
		}
		if idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("label index %d out of range", idx)
		}
		out[idx] = v
	}
	return out, nil
}

func labelsFromIDMap(id2label map[string]string) []string {
	if len(id2label) == 0 {
		return nil
	}
	byID := make(map[int]string, len(id2label))
	maxID := -1
	for k, v := range id2label {
		id, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || id < 0 {
			continue
		}
		byID[id] = v
		if id > maxID {
			maxID = id
		}
	}
	if maxID < 0 {
		return nil
	}
	labels := make([]string, maxID+1)
	for id, lbl := range byID {
		labels[id] = lbl
	}
	return labels
}

func labelsFromLabel2ID(label2id map[string]int) []string {
	if len(label2id) == 0 {
		return nil
	}
	maxID := -1
	for _, id := range label2id {
		if id > maxID {
			maxID = id
		}
	}
	if maxID < 0 {
		return nil
	}
	labels := make([]string, maxID+1)
	for lbl, id := range label2id {
		if id >= 0 {
			labels[id] = lbl
		}
	}
	return labels
}

// artificialIndex returns the index of the artificial class, matched
// case-insensitively, or -1.
func artificialIndex(labels []string) int {
	for i, lbl := range labels {
		if strings.EqualFold(strings.TrimSpace(lbl), artificialLabel) {
			return i
		}
	}
	return -1
}

func labelAt(labels []string, idx int) string {
	if idx >= 0 && idx < len(labels) && labels[idx] != "" {
		return labels[idx]
	}
	return "LABEL_" + strconv.Itoa(idx)
}
