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

import (
	"fmt"
)

// WarningKind enumerates the non-fatal warnings an operation's Checked
// result may carry.
type WarningKind uint8

const (
	DoubleContractCreation WarningKind = iota
	DoubleContractArchival
	SimultaneousActivation
	SimultaneousDeactivation
	ChangeBeforeCreation
	ChangeAfterArchival
)

func (k WarningKind) String() string {
	switch k {
	case DoubleContractCreation:
		return "DoubleContractCreation"
	case DoubleContractArchival:
		return "DoubleContractArchival"
	case SimultaneousActivation:
		return "SimultaneousActivation"
	case SimultaneousDeactivation:
		return "SimultaneousDeactivation"
	case ChangeBeforeCreation:
		return "ChangeBeforeCreation"
	case ChangeAfterArchival:
		return "ChangeAfterArchival"
	default:
		return "Unknown"
	}
}

// Warning is a single non-fatal anomaly surfaced alongside an
// otherwise-applied change.
type Warning struct {
	Kind WarningKind
	Cid  string
	TocA int64
	TocB int64
}

func (w Warning) String() string {
	return fmt.Sprintf("%s(cid=%s, toc=%d, toc=%d)", w.Kind, w.Cid, w.TocA, w.TocB)
}

// Checked is the result shape every ACS operation returns: zero or
// more non-fatal warnings, plus at most one fatal error.
type Checked struct {
	Warnings []Warning
	Err      error
}
