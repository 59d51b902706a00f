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

package assembly

import "time"

const (
	DefaultImageDuration = 4 * time.Second
	DefaultMinDuration   = 3 * time.Second
	DefaultMaxDuration   = 10 * time.Second
)

// DurationPolicy decides how long each still is shown.
type DurationPolicy struct {
	Default time.Duration // Used without narration.
	Min     time.Duration
	Max     time.Duration
}

func DefaultDurationPolicy() DurationPolicy {
	return DurationPolicy{Default: DefaultImageDuration, Min: DefaultMinDuration, Max: DefaultMaxDuration}
}

// WithDefaults fills unset values and orders Min and Max.
func (p DurationPolicy) WithDefaults() DurationPolicy {
	if p.Default <= 0 {
		p.Default = DefaultImageDuration
	}
	if p.Min <= 0 {
		p.Min = DefaultMinDuration
	}
	if p.Max <= 0 {
		p.Max = DefaultMaxDuration
	}
	if p.Min > p.Max {
		p.Min, p.Max = p.Max, p.Min
	}
	return p
}

// PerImageDuration spreads the narration over the images, clamped to
// [Min, Max]. Without narration (or images) the default applies. The clamped
// total may differ from the narration length.
func PerImageDuration(narration time.Duration, images int, policy DurationPolicy) time.Duration {
	policy = policy.WithDefaults()
	if narration <= 0 || images <= 0 {
		return policy.Default
	}
	d := narration / time.Duration(images)
	switch {
	case d < policy.Min:
		return policy.Min
	case d > policy.Max:
		return policy.Max
	}
	return d
}
