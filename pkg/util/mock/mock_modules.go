// Copyright 2023 Ant Group Co., Ltd.
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

package mock

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/secretflow/hlobridge/pkg/ir"
	"github.com/secretflow/hlobridge/pkg/platform"
)

var MockModulePath = "modules.json"

// ModuleCase is one canned module from the testdata library.
type ModuleCase struct {
	Description string   `json:"description"`
	DeviceType  string   `json:"device_type"`
	Lines       []string `json:"lines"`
}

// Text joins the case lines into parseable module text.
func (mc ModuleCase) Text() string {
	return strings.Join(mc.Lines, "\n") + "\n"
}

type moduleLibrary struct {
	Modules map[string]ModuleCase `json:"modules"`
}

func getByteArrayFromJson(filePath string) (res []byte, err error) {
	jsonFile, err := os.Open(filePath)
	if err != nil {
		return res, err
	}
	defer func() {
		if err1 := jsonFile.Close(); err == nil && err1 != nil {
			err = err1
		}
	}()
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return res, err
	}
	// Remove comments, since they are not allowed in json.
	re := regexp.MustCompile("(?s)//.*?\n")
	return re.ReplaceAll(byteValue, nil), nil
}

func getDataFromJson[retType any](filePath string) (res retType, err error) {
	byteValue, err := getByteArrayFromJson(filePath)
	if err != nil {
		return
	}
	err = json.Unmarshal(byteValue, &res)
	return
}

// MockModules loads the canned module library. Tests and demos share the
// library instead of repeating module text inline.
func MockModules() (map[string]ModuleCase, error) {
	libPath := MockModulePath
	if !filepath.IsAbs(libPath) {
		pre := "util/mock/testdata"
		workDir, _ := os.Getwd()
		re := regexp.MustCompile(".*/pkg")
		dir := re.FindString(workDir)

		if dir == "" {
			re = regexp.MustCompile(".*/examples")
			dir = re.FindString(workDir)
			if dir == "" {
				return nil, fmt.Errorf("cannot find pkg dir")
			}
			dir, _ = filepath.Split(dir)
			dir = dir + "pkg"
		}
		libPath = filepath.Join(filepath.Join(dir, pre), MockModulePath)
	}
	library, err := getDataFromJson[moduleLibrary](libPath)
	if err != nil {
		return nil, err
	}
	return library.Modules, nil
}

// MockModule returns one canned module by name.
func MockModule(name string) (ModuleCase, error) {
	modules, err := MockModules()
	if err != nil {
		return ModuleCase{}, err
	}
	mc, ok := modules[name]
	if !ok {
		return ModuleCase{}, fmt.Errorf("module %s not found", name)
	}
	return mc, nil
}

// MockModuleNames returns the library case names, sorted.
func MockModuleNames() ([]string, error) {
	modules, err := MockModules()
	if err != nil {
		return nil, err
	}
	var names []string
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// MustMockModuleText parses a canned module once to validate it, then returns
// the text. It panics on a broken library entry, so only tests and demos
// should call it.
func MustMockModuleText(name string) string {
	mc, err := MockModule(name)
	if err != nil {
		panic(err)
	}
	text := mc.Text()
	ir.MustParseModule(text)
	return text
}

// MetadataFor derives compile metadata and argument shapes from a parsed
// module, one parameter spec per entry argument and one retval spec per
// result.
func MetadataFor(m *ir.Module) (*platform.CompileMetadata, []ir.Shape) {
	meta := &platform.CompileMetadata{NumCores: 1}
	shapes := make([]ir.Shape, 0, len(m.Func.Params))
	for _, p := range m.Func.Params {
		meta.Args = append(meta.Args, platform.ArgSpec{DType: p.Type.DType, Kind: platform.ArgKindParameter})
		shapes = append(shapes, p.Type.Shape)
	}
	for _, rt := range m.Func.Results {
		meta.Retvals = append(meta.Retvals, platform.RetvalSpec{DType: rt.DType})
	}
	return meta, shapes
}
