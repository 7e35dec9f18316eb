/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1

// Unit is the display unit of a translated resource quantity.
type Unit string

const (
	UnitNone      Unit = ""
	UnitCore      Unit = "Core"
	UnitMilliCore Unit = "MilliCore"
	UnitMi        Unit = "Mi"
	UnitGi        Unit = "Gi"
)

// IsCPU returns true if the unit belongs to the decimal (cpu) family.
func (u Unit) IsCPU() bool {
	return u == UnitCore || u == UnitMilliCore
}

// IsMemory returns true if the unit belongs to the binary (memory) family.
func (u Unit) IsMemory() bool {
	return u == UnitMi || u == UnitGi
}

// Quantity is an integer value paired with a display unit. A zero Unit means the
// value could not be classified and carries no meaning.
type Quantity struct {
	Value int64 `json:"value"`
	Unit  Unit  `json:"unit,omitempty"`
}

func Cores(v int64) *Quantity      { return &Quantity{Value: v, Unit: UnitCore} }
func MilliCores(v int64) *Quantity { return &Quantity{Value: v, Unit: UnitMilliCore} }
func Mebibytes(v int64) *Quantity  { return &Quantity{Value: v, Unit: UnitMi} }
func Gibibytes(v int64) *Quantity  { return &Quantity{Value: v, Unit: UnitGi} }
