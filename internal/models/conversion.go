package models

import "time"

type ConversionStatus string

const (
	ConversionStatusRunning  ConversionStatus = "running"
	ConversionStatusComplete ConversionStatus = "complete"
	ConversionStatusFailed   ConversionStatus = "failed"
)

// Conversion is the history record of one converted input file.
type Conversion struct {
	ID                 string
	BatchID            string
	CreatedAt          time.Time
	CompletedAt        *time.Time
	InputPath          string
	Shape              Shape
	Status             ConversionStatus
	TopicCount         int
	ActionCount        int
	HasLegacyVariables bool
	OutputPath         string
	ErrorCode          string
	Error              string
}

func (c *Conversion) Failed() bool {
	return c.Status == ConversionStatusFailed
}

type ConversionNote struct {
	ID           int64
	ConversionID string
	SequenceNum  int
	Text         string
}
