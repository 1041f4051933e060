/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/


// Package cleanup garbage-collects preview environments whose branch is gone,
// whose branch has gone quiet, or whose database shows no recent use.
//
// A pass has three stages:
//
//  1. The Classifier lists the branches of the repository and maps each one to
//     the namespace it would get on every backend. An environment is a
//     candidate when no branch maps to its namespace, when its branch has no
//     commits inside the staleness window, or when it reports itself inactive.
//  2. The Orchestrator tears down the candidates concurrently. Each teardown
//     deletes the TLS certificate, then the DNS records, then the environment
//     itself and stops at the first failing step. One failed teardown never
//     aborts another.
//  3. An optional LoadBalancerReclaimer removes load balancers left behind by
//     Harvester environments.
//
// The Scheduler drives a pass once, or repeatedly on an interval:
//
//	scheduler := cleanup.NewScheduler(inventory, classifier, orchestrator, time.Hour).
//		WithReclaimer(reclaimer).
//		WithPushgateway("http://pushgateway:9091", "preview-gc")
//	if err := scheduler.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// In dry-run mode the Orchestrator logs "Would have deleted preview
// environment" for every candidate and mutates nothing.
package cleanup
