// Copyright 2024 The Hedron Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"golang.org/x/time/rate"
)

// RateLimited wraps the package-level logging functions with a limiter,
// for call sites that are noisy under normal but unfortunate conditions:
// a storm of #GP retries while reloading the TSS, or a CPU that keeps
// re-acknowledging a TLB shootdown because its user program keeps
// re-faulting. Dropping the excess here, instead of at the call site,
// keeps the call sites themselves simple.
type RateLimited struct {
	limiter *rate.Limiter
}

// NewRateLimited returns a limiter allowing burst immediate lines and then
// everyPerSecond lines per second.
func NewRateLimited(everyPerSecond float64, burst int) *RateLimited {
	return &RateLimited{limiter: rate.NewLimiter(rate.Limit(everyPerSecond), burst)}
}

// Warningf emits through Warningf if the limiter allows it.
func (r *RateLimited) Warningf(format string, v ...any) {
	if r.limiter.Allow() {
		Warningf(format, v...)
	}
}

// Debugf emits through Debugf if the limiter allows it.
func (r *RateLimited) Debugf(format string, v ...any) {
	if r.limiter.Allow() {
		Debugf(format, v...)
	}
}
