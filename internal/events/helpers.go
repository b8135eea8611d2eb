package events

import (
	"encoding/json"
	"fmt"
)

// SetStageData sets the Data field with StageData in a type-safe way.
func (e *PipelineEvent) SetStageData(data StageData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert StageData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetStageData retrieves StageData from the Data field.
func (e *PipelineEvent) GetStageData() (*StageData, error) {
	var data StageData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse StageData: %w", err)
	}
	return &data, nil
}

// SetReleaseCreatedData sets the Data field with ReleaseCreatedData in a type-safe way.
func (e *PipelineEvent) SetReleaseCreatedData(data ReleaseCreatedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert ReleaseCreatedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetReleaseCreatedData retrieves ReleaseCreatedData from the Data field.
func (e *PipelineEvent) GetReleaseCreatedData() (*ReleaseCreatedData, error) {
	var data ReleaseCreatedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ReleaseCreatedData: %w", err)
	}
	return &data, nil
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling
func structToMap(data interface{}) (map[string]interface{}, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(jsonData, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts map[string]interface{} to a struct using JSON marshaling
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	jsonData, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, target)
}
