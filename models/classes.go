package models

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-yolov5/common"
)

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int `json:"index" yaml:"index"`
	// The human-readable label.
	Name string `json:"name" yaml:"name"`
}

// OutputClassSet ties a style to its full list of labels.
type OutputClassSet struct {
	// Class set identifier.
	Style ModelFamily `json:"style" yaml:"style"`
	// Classes ordered by index.
	Classes []OutputClass `json:"classes" yaml:"classes"`
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// NewOutputClassSet builds a set from names ordered by class index.
func NewOutputClassSet(style ModelFamily, names []string) *OutputClassSet {
	s := &OutputClassSet{Style: style, Classes: make([]OutputClass, len(names))}
	for i, n := range names {
		s.Classes[i] = OutputClass{Index: i, Name: n}
	}
	s.BuildNameIndexMap()
	return s
}

// BuildNameIndexMap builds or rebuilds the name->index map.
func (s *OutputClassSet) BuildNameIndexMap() {
	s.nameToIdx = make(map[string]int, len(s.Classes))
	for _, c := range s.Classes {
		s.nameToIdx[c.Name] = c.Index
	}
}

// Len returns the number of classes.
func (s *OutputClassSet) Len() int {
	return len(s.Classes)
}

// Name returns the label of a class index, or an empty string when the index is out of range.
func (s *OutputClassSet) Name(idx int) string {
	if idx < 0 || idx >= len(s.Classes) {
		return ""
	}
	return s.Classes[idx].Name
}

// Index returns the class index of a label.
//
// Arguments:
//   - name: The label, e.g. "person".
//
// Returns:
//   - int: The class index, or -1.
//   - error: An error if the label is unknown.
func (s *OutputClassSet) Index(name string) (int, error) {
	idx, ok := s.nameToIdx[name]
	if !ok {
		return -1, errors.Errorf("name %q not found in style %q", name, s.Style)
	}
	return idx, nil
}

// labelFile is the dataset YAML layout: names is either a list or an index map.
type labelFile struct {
	Names yaml.Node `yaml:"names"`
}

// ParseLabels reads class names from a dataset YAML document.
//
// Both accepted forms are supported:
//
//	names: [person, bicycle, car]
//
//	names:
//	  0: person
//	  1: bicycle
//
// Arguments:
//   - data: The YAML document.
//
// Returns:
//   - *OutputClassSet: The labels, styled ModelFamilyCustom.
//   - error: common.ErrConfiguration if the document has no usable names.
func ParseLabels(data []byte) (*OutputClassSet, error) {
	var f labelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, common.Configuration("failed to parse labels: %v", err)
	}

	var names []string
	switch f.Names.Kind {
	case yaml.SequenceNode:
		if err := f.Names.Decode(&names); err != nil {
			return nil, common.Configuration("failed to decode label list: %v", err)
		}
	case yaml.MappingNode:
		byIndex := map[int]string{}
		if err := f.Names.Decode(&byIndex); err != nil {
			return nil, common.Configuration("failed to decode label map: %v", err)
		}
		names = make([]string, len(byIndex))
		for idx, name := range byIndex {
			if idx < 0 || idx >= len(byIndex) {
				return nil, common.Configuration("label index %d is outside 0..%d", idx, len(byIndex)-1)
			}
			names[idx] = name
		}
	}

	if len(names) == 0 {
		return nil, common.Configuration("labels document has no names")
	}
	return NewOutputClassSet(ModelFamilyCustom, names), nil
}

// LoadLabels reads class names from a dataset YAML file.
func LoadLabels(path string) (*OutputClassSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.Configuration("failed to read labels %s: %v", path, err)
	}
	return ParseLabels(data)
}

// YOLOClasses is the 80 COCO classes (no background).
// YOLO models index directly into this zero-based list.
var YOLOClasses = NewOutputClassSet(ModelFamilyYOLO, []string{
	"person",
	"bicycle",
	"car",
	"motorcycle",
	"airplane",
	"bus",
	"train",
	"truck",
	"boat",
	"traffic light",
	"fire hydrant",
	"stop sign",
	"parking meter",
	"bench",
	"bird",
	"cat",
	"dog",
	"horse",
	"sheep",
	"cow",
	"elephant",
	"bear",
	"zebra",
	"giraffe",
	"backpack",
	"umbrella",
	"handbag",
	"tie",
	"suitcase",
	"frisbee",
	"skis",
	"snowboard",
	"sports ball",
	"kite",
	"baseball bat",
	"baseball glove",
	"skateboard",
	"surfboard",
	"tennis racket",
	"bottle",
	"wine glass",
	"cup",
	"fork",
	"knife",
	"spoon",
	"bowl",
	"banana",
	"apple",
	"sandwich",
	"orange",
	"broccoli",
	"carrot",
	"hot dog",
	"pizza",
	"donut",
	"cake",
	"chair",
	"couch",
	"potted plant",
	"bed",
	"dining table",
	"toilet",
	"tv",
	"laptop",
	"mouse",
	"remote",
	"keyboard",
	"cell phone",
	"microwave",
	"oven",
	"toaster",
	"sink",
	"refrigerator",
	"book",
	"clock",
	"vase",
	"scissors",
	"teddy bear",
	"hair drier",
	"toothbrush",
})
