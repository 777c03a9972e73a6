/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package stress runs a fixed-size concurrent workload: Workers
// goroutines each performing Iterations calls to a step function, useful
// for exercising concurrent allocate/deallocate properties without
// hand-rolling a worker pool in every test.
package stress

import (
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Option configures a Run.
type Option struct {
	Workers    int
	Iterations int
}

// Result reports the outcome of a Run.
type Result struct {
	Completed int64
	Failures  int64
}

// Run launches Workers goroutines, each calling step Iterations times
// with its own worker index and iteration number, and blocks until all
// have finished. A panic inside step is recovered and logged rather than
// propagated: a single misbehaving iteration should not take down the
// whole run.
func Run(o Option, step func(worker, iteration int) bool) Result {
	var wg sync.WaitGroup
	var completed, failures int64

	wg.Add(o.Workers)
	for w := 0; w < o.Workers; w++ {
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < o.Iterations; i++ {
				ok := runStep(worker, i, step)
				atomic.AddInt64(&completed, 1)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
			}
		}(w)
	}
	wg.Wait()

	return Result{
		Completed: atomic.LoadInt64(&completed),
		Failures:  atomic.LoadInt64(&failures),
	}
}

func runStep(worker, iteration int, step func(int, int) bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("stress: panic in worker %d iteration %d: %v\n%s", worker, iteration, r, debug.Stack())
			ok = false
		}
	}()
	return step(worker, iteration)
}
