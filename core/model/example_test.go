package model_test

import (
	"fmt"

	"github.com/jrmsu/ojtinsight/core/model"
)

// ExampleBaseEstimator demonstrates BaseEstimator state management
func ExampleBaseEstimator() {
	estimator := &model.BaseEstimator{ModelType: "StandardScaler"}

	fmt.Printf("Initially fitted: %t\n", estimator.IsFitted())

	estimator.SetFitted()
	fmt.Printf("After SetFitted: %t\n", estimator.IsFitted())

	estimator.Reset()
	fmt.Printf("After Reset: %t\n", estimator.IsFitted())

	// Output: Initially fitted: false
	// After SetFitted: true
	// After Reset: false
}

// ExampleStateManager shows the state embedded by classifiers.
func ExampleStateManager() {
	state := model.NewStateManager()
	state.SetDimensions(10, 120)
	state.SetFitted()
	fmt.Println(state.IsFitted(), state.NFeatures(), state.NSamples())

	state.Reset()
	fmt.Println(state.IsFitted(), state.NFeatures())

	// Output: true 10 120
	// false 0
}
