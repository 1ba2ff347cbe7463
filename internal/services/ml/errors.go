package ml

import "fmt"

// ConfigurationError reports an invalid pipeline configuration, such as a
// target column that does not exist in the input.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// InsufficientDataError reports too few training samples.
type InsufficientDataError struct {
	Needed int
	Got    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d samples, got %d", e.Needed, e.Got)
}

// InsufficientHistoryError reports too few observations to build one
// inference window.
type InsufficientHistoryError struct {
	Needed int
	Got    int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: need %d observations, got %d", e.Needed, e.Got)
}

// NotTrainedError reports predict-before-train.
type NotTrainedError struct {
	Model string
}

func (e *NotTrainedError) Error() string {
	return e.Model + " is not trained"
}

// NotFittedError reports transform-before-fit on a scaler.
type NotFittedError struct{}

func (e *NotFittedError) Error() string {
	return "scaler is not fitted"
}
