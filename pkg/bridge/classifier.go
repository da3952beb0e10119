// Copyright 2026 Ant Group Co., Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bridge

import (
	"github.com/secretflow/hlobridge/pkg/status"
)

// IsBenign reports whether err is the analysis-unsupported sentinel. Builds
// without the module analyzer produce exactly this one status, and every
// caller applies the same tolerance: treat it like success when judging
// whether the pipeline ran correctly. IsBenign is a pure function of the
// error value and never consults dispatcher state.
func IsBenign(err error) bool {
	return err != nil && status.CodeOf(err) == status.CodeGraphAnalysisUnsupported
}
