// Copyright 2025 BINARY Members
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

package acs

import "fmt"

const (
	prefixState  = "acs/st/"
	prefixChange = "acs/ch/"
)

func orderedInt64(n int64) string {
	biased := uint64(n) ^ (1 << 63)
	return fmt.Sprintf("%020d", biased)
}

func unbiasOrderedInt64(s string) int64 {
	var biased uint64
	fmt.Sscanf(s, "%020d", &biased)
	return int64(biased ^ (1 << 63))
}

func stateKey(cid string) string {
	return prefixState + cid
}

// changeKey orders the change log by (toc, rc, isDeactivation), per
// the store's total order: equal-toc activations sort before
// deactivations.
func changeKey(toc int64, rc int64, isDeactivation bool) string {
	d := byte(0)
	if isDeactivation {
		d = 1
	}
	return fmt.Sprintf("%s%s/%s/%d", prefixChange, orderedInt64(toc), orderedInt64(rc), d)
}

func changePrefixUpTo(toc int64) string {
	return prefixChange + orderedInt64(toc) + "\xff"
}

func changePrefixAfter(toc int64) string {
	return prefixChange + orderedInt64(toc)
}
