// Package models - Definitions for model output class styles and sets.
package models

// ModelFamily identifies the naming convention / dataset of a label set.
type ModelFamily string

const (
	// ModelFamilyYOLO is the 80 COCO classes, no background.
	ModelFamilyYOLO ModelFamily = "yolo"
	// ModelFamilyCustom is a label set loaded from a dataset file.
	ModelFamilyCustom ModelFamily = "custom"
)
