// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model defines the data structures for the application. This file,
// `examples.go`, provides the hardcoded example used for "few-shot" prompting
// of the narration model, so the model answers with the exact JSON shape
// NarrationScript expects.
package model

// GetExampleNarration creates a sample NarrationScript for the narration prompt.
func GetExampleNarration() *NarrationScript {
	return &NarrationScript{
		Title: "A Morning at the Harbour",
		Script: "The boats were still asleep when we arrived. " +
			"We walked the pier while the fog lifted, and for a moment the whole bay was ours.",
		Keywords: []string{"harbour", "morning", "fog", "boats"},
	}
}
